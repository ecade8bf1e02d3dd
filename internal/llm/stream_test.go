package llm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Rrens/appstruct/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSSE(t *testing.T) {
	input := ": keep-alive\n" +
		"data: {\"a\":1}\n\n" +
		"event: content_block_delta\n" +
		"data: line one\n" +
		"data: line two\n\n" +
		"data: [DONE]\n"

	var events []llm.SSEEvent
	err := llm.ReadSSE(strings.NewReader(input), func(ev llm.SSEEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Equal(t, "content_block_delta", events[1].Event)
	assert.Equal(t, "line one\nline two", events[1].Data)
	assert.Equal(t, "", events[2].Event)
	assert.Equal(t, "[DONE]", events[2].Data)
}

func TestReadSSE_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := llm.ReadSSE(strings.NewReader("data: a\n\ndata: b\n\n"), func(llm.SSEEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadLines(t *testing.T) {
	var lines []string
	err := llm.ReadLines(strings.NewReader("{\"x\":1}\n\n  \n{\"x\":2}"), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"x":1}`, `{"x":2}`}, lines)
}
