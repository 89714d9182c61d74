package ask

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// streamChunk is the JSON shape of one SSE data line.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// consumeStream reads newline-delimited SSE chunks from r, calling
// onDelta for each incremental text delta. Lines without a "data: "
// prefix and malformed JSON are skipped. The loop ends on the [DONE]
// sentinel or stream closure; a read error is returned as-is so the
// caller can distinguish cancellation from transport failure.
func consumeStream(r io.Reader, onDelta func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			onDelta(token)
		}
	}
	return scanner.Err()
}

// isMultimodalError classifies an error text as plausibly caused by the
// model rejecting image input, in which case a text-only retry is worth
// attempting.
func isMultimodalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"vision", "image", "multimodal", "unsupported",
		"image_url", "400", "invalid", "not supported",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
