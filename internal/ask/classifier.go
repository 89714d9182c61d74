package ask

import (
	"regexp"
	"strings"
)

// Phrases that mean the user wants the browser driven, not an answer
// composed from model knowledge.
var actionIndicators = []string{
	"go to", "click", "open ", "navigate", "browse to", "visit ",
	"search for", "google", "lookup", "web search",
	"buy", "purchase", "shop",
	"amazon", "ebay", "youtube", "walmart", "etsy",
}

// Question forms that general knowledge answers well without browsing.
var knowledgePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^what\s+(is|are|was|were)\s+`),
	regexp.MustCompile(`(?i)^who\s+(is|are|was|were)\s+`),
	regexp.MustCompile(`(?i)^how\s+(does|do|did)\s+.+\s+work`),
	regexp.MustCompile(`(?i)^explain\s+`),
	regexp.MustCompile(`(?i)^define\s+`),
	regexp.MustCompile(`(?i)^describe\s+`),
	regexp.MustCompile(`(?i)\bhistory\s+of\b`),
	regexp.MustCompile(`(?i)^why\s+(is|are|was|were|does|do|did)\s+`),
}

// Words that signal the answer depends on information newer than the
// model's knowledge. Matched on word boundaries so "know" never
// matches "now".
var currentInfoPattern = regexp.MustCompile(
	`\b(latest|recent|current|currently|today|now|news|price|prices|cost|stock|weather|2024|2025|2026|updated)\b` +
		`|\bthis (year|month|week)\b|\bnew release\b`)

var questionWords = []string{
	"what", "who", "where", "when", "why", "how", "which",
}

// IsSearchQuery decides whether a question should be delegated to the
// browsing agent instead of answered by a direct completion. It is
// deterministic and side-effect free.
//
// The policy is ordered: explicit browser actions always delegate;
// recognizable general-knowledge questions stay local unless they also
// ask for current information; everything else stays local unless a
// weaker signal (location, comparison) applies.
func IsSearchQuery(text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return false
	}

	for _, indicator := range actionIndicators {
		if strings.Contains(q, indicator) {
			return true
		}
	}

	needsCurrent := containsCurrentInfoIndicator(q)

	for _, pattern := range knowledgePatterns {
		if pattern.MatchString(q) {
			return needsCurrent
		}
	}

	for _, w := range questionWords {
		if strings.HasPrefix(q, w+" ") || strings.HasPrefix(q, w+"'") {
			return needsCurrent
		}
	}

	if strings.Contains(q, "near me") || strings.Contains(q, "nearby") {
		return true
	}
	if strings.Contains(q, " vs ") || strings.Contains(q, "versus") || strings.Contains(q, "compare") {
		return true
	}

	return false
}

func containsCurrentInfoIndicator(q string) bool {
	return currentInfoPattern.MatchString(q)
}
