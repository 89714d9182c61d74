package ask

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"orbit/internal/llm"
	"orbit/internal/logging"
)

const (
	overviewHeading  = "## AI Overview"
	wikipediaHeading = "## Wikipedia"
	communityHeading = "## Community Discussions"
	tldrHeading      = "## TL;DR"
)

var commonTopics = []string{
	"technology", "science", "business", "health",
	"education", "programming", "development",
}

var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true,
	"they": true, "have": true, "will": true, "been": true,
	"were": true, "would": true, "could": true, "should": true,
}

// Enhancer appends best-effort supplementary sections to a completed
// answer. Every sub-step degrades gracefully: a failed section is
// omitted, never fatal.
type Enhancer struct {
	completer llm.Completer
	minLength int
}

// NewEnhancer creates an enhancer. completer may be nil, in which case
// topic extraction and the TL;DR fall back to heuristics.
func NewEnhancer(completer llm.Completer, minLength int) *Enhancer {
	if minLength <= 0 {
		minLength = 50
	}
	return &Enhancer{completer: completer, minLength: minLength}
}

// Enhance returns the response with appended sections, or "" when no
// enhancement applies (too short, already enhanced, or zero sections
// succeeded). A "" result leaves the original response standing and
// keeps the pipeline safe to retry.
func (e *Enhancer) Enhance(ctx context.Context, response string) string {
	if len(response) < e.minLength {
		logging.EnhanceDebug("skipping enhancement: response too short (%d chars)", len(response))
		return ""
	}
	if strings.Contains(response, overviewHeading) || strings.Contains(response, "<h1>AI Overview</h1>") {
		logging.EnhanceDebug("skipping enhancement: already enhanced")
		return ""
	}

	topics := e.extractTopics(ctx, response)
	logging.Enhance("generating sections for topics: %v", topics)

	var overview, wikipedia, community, tldr string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview = e.overviewSection(topics)
		return nil
	})
	g.Go(func() error {
		wikipedia = e.wikipediaSection(topics[0])
		return nil
	})
	g.Go(func() error {
		community = e.communitySection(topics[0])
		return nil
	})
	g.Go(func() error {
		tldr = e.tldrSection(gctx, response)
		return nil
	})
	g.Wait()

	var b strings.Builder
	b.WriteString(response)
	sections := 0
	for _, s := range []struct{ heading, body string }{
		{overviewHeading, overview},
		{wikipediaHeading, wikipedia},
		{communityHeading, community},
		{tldrHeading, tldr},
	} {
		if s.body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s\n\n%s", s.heading, s.body)
		sections++
	}

	if sections == 0 {
		return ""
	}
	logging.Enhance("enhancement complete with %d sections", sections)
	return b.String()
}

// extractTopics asks the secondary model for 1-3 key topics, falling
// back to keyword heuristics. It never returns an empty slice.
func (e *Enhancer) extractTopics(ctx context.Context, response string) []string {
	if e.completer != nil {
		excerpt := response
		if len(excerpt) > 1000 {
			excerpt = excerpt[:1000]
		}
		prompt := "Extract 1-3 key topics from this response that would be good for finding additional information. Return only topic names, one per line, no explanations:\n\n" + excerpt

		if out, err := e.completer.Complete(ctx, prompt); err == nil {
			var topics []string
			for _, line := range strings.Split(out, "\n") {
				t := strings.TrimSpace(line)
				if t != "" && len(t) < 50 {
					topics = append(topics, t)
				}
				if len(topics) == 3 {
					break
				}
			}
			if len(topics) > 0 {
				return topics
			}
		} else {
			logging.EnhanceDebug("topic extraction failed: %v", err)
		}
	}

	return fallbackTopics(response)
}

func fallbackTopics(response string) []string {
	words := splitWords(strings.ToLower(response))

	var topics []string
	for _, topic := range commonTopics {
		for _, w := range words {
			if w == topic {
				topics = append(topics, capitalize(topic))
				break
			}
		}
	}
	if len(topics) > 0 {
		return topics
	}

	for _, w := range words {
		if len(w) > 4 && !stopWords[w] {
			topics = append(topics, capitalize(w))
			if len(topics) == 2 {
				break
			}
		}
	}
	if len(topics) > 0 {
		return topics
	}

	return []string{"General Topic"}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Enhancer) overviewSection(topics []string) string {
	return fmt.Sprintf(`This response covers **%s**. Here are additional perspectives and insights that complement the main answer.

• **Key Insight**: %s is an important topic that involves multiple considerations
• **Context**: The information provided offers a comprehensive view of the subject
• **Applications**: This knowledge can be applied in various practical scenarios

*This overview synthesizes the main response to provide additional context and depth.*`,
		strings.Join(topics, ", "), topics[0])
}

func (e *Enhancer) wikipediaSection(topic string) string {
	slug := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))
	return fmt.Sprintf(`**Related Wikipedia Articles:**

• [%s](https://en.wikipedia.org/wiki/%s) - Comprehensive encyclopedia entry
• [%s History](https://en.wikipedia.org/wiki/%s_history) - Historical context and development
• [%s Applications](https://en.wikipedia.org/wiki/%s_applications) - Real-world uses and implementations

*These Wikipedia articles provide detailed background information and historical context.*`,
		topic, slug, topic, slug, topic, slug)
}

func (e *Enhancer) communitySection(topic string) string {
	sub := strings.ToLower(strings.ReplaceAll(topic, " ", ""))
	query := url.QueryEscape(topic)
	return fmt.Sprintf(`**Community Discussions:**

• [r/%s](https://www.reddit.com/r/%s/) - Dedicated community
• [Search "%s" on Reddit](https://www.reddit.com/search/?q=%s) - All discussions about %s
• [r/explainlikeimfive](https://www.reddit.com/r/explainlikeimfive/search/?q=%s) - Simple explanations
• [r/askreddit](https://www.reddit.com/r/AskReddit/search/?q=%s) - General discussions

*Community perspectives and real user experiences from Reddit.*`,
		sub, sub, topic, query, topic, query, query)
}

func (e *Enhancer) tldrSection(ctx context.Context, response string) string {
	if e.completer == nil {
		return ""
	}
	prompt := "Create a concise TL;DR summary of this response in 2-3 bullet points. Be specific and capture the main takeaways:\n\n" + response

	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		logging.EnhanceDebug("TL;DR generation failed: %v", err)
		return "• Main response addresses the key aspects of the question\n• Provides comprehensive information and context\n• Additional resources available for deeper exploration"
	}
	return strings.TrimSpace(out)
}
