package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/internal/config"
)

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		Provider: "openai",
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "gpt-4o",
		Timeout:  "5s",
	}
}

func TestStreamChat_SendsBearerAndStreamFlag(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(testConfig(srv.URL))
	body, err := c.StreamChat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, true, gotBody["stream"])
	assert.Equal(t, "gpt-4o", gotBody["model"])
}

func TestStreamChat_ImageTurnBecomesContentArray(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(testConfig(srv.URL))
	body, err := c.StreamChat(context.Background(), []ChatMessage{
		{Role: "user", Content: "what is on screen", ImageB64: "aGVsbG8="},
	})
	require.NoError(t, err)
	defer body.Close()

	require.Len(t, gotBody.Messages, 1)
	var parts []openAIContentPart
	require.NoError(t, json.Unmarshal(gotBody.Messages[0].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", parts[1].ImageURL.URL)
}

func TestStreamChat_NonOKIncludesBodyInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"image_url is not supported by this model"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(testConfig(srv.URL))
	_, err := c.StreamChat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_url is not supported")
	assert.Contains(t, err.Error(), "status 400")
}

func TestStreamChat_MissingKey(t *testing.T) {
	c := NewOpenAIClient(config.LLMConfig{Provider: "openai"})
	_, err := c.StreamChat(context.Background(), nil)
	assert.Error(t, err)
}

func TestComplete_ParsesChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotContains(t, readBody(r), `"stream":true`)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"  a summary  "}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(testConfig(srv.URL))
	got, err := c.Complete(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "a summary", got)
}

func TestComplete_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNewProvider_UnknownName(t *testing.T) {
	_, err := NewProvider(config.LLMConfig{Provider: "mystery"})
	assert.Error(t, err)
}

func TestNewProvider_DefaultsToOpenAI(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	_, ok := p.(*OpenAIClient)
	assert.True(t, ok)
}

func readBody(r *http.Request) string {
	b, _ := io.ReadAll(r.Body)
	return strings.TrimSpace(string(b))
}
