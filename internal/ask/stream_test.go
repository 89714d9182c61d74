package ask

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeStream_AccumulatesDeltas(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n" +
		"data: [DONE]\n"

	var got strings.Builder
	err := consumeStream(strings.NewReader(input), func(tok string) { got.WriteString(tok) })

	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.String())
}

func TestConsumeStream_SkipsMalformedAndUnprefixedLines(t *testing.T) {
	input := "event: ping\n" +
		"data: not-json\n" +
		"\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		"data: {}\n" +
		"data: [DONE]\n"

	var got strings.Builder
	err := consumeStream(strings.NewReader(input), func(tok string) { got.WriteString(tok) })

	require.NoError(t, err)
	assert.Equal(t, "ok", got.String())
}

func TestConsumeStream_StreamClosureWithoutSentinel(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"

	var got strings.Builder
	err := consumeStream(strings.NewReader(input), func(tok string) { got.WriteString(tok) })

	require.NoError(t, err)
	assert.Equal(t, "partial", got.String())
}

type erroringReader struct {
	data string
	err  error
	done bool
}

func (r *erroringReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func TestConsumeStream_PropagatesReadError(t *testing.T) {
	transportErr := errors.New("connection reset")
	r := &erroringReader{
		data: "data: {\"choices\":[{\"delta\":{\"content\":\"some\"}}]}\n",
		err:  transportErr,
	}

	var got strings.Builder
	err := consumeStream(r, func(tok string) { got.WriteString(tok) })

	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, "some", got.String())
}

func TestConsumeStream_EOFIsClean(t *testing.T) {
	r := &erroringReader{data: "data: [DONE]\n", err: io.EOF}
	err := consumeStream(r, func(string) { t.Fatal("no deltas expected") })
	assert.NoError(t, err)
}

func TestIsMultimodalError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("model does not support image input"), true},
		{errors.New("API request failed with status 400: invalid content"), true},
		{errors.New("vision capability required"), true},
		{errors.New("image_url is not supported by this model"), true},
		{errors.New("connection reset by peer"), false},
		{errors.New("rate limit exceeded"), false},
		{nil, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, isMultimodalError(tc.err), "error: %v", tc.err)
	}
}
