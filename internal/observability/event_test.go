package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, e Event) {
	r.events = append(r.events, e)
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, EventGenerateStarted, "u1", nil)
	})
}

func TestEmit_Records(t *testing.T) {
	sink := &recordingSink{}
	Emit(context.Background(), sink, EventGenerateFailed, "u1", map[string]any{"kind": "rate_limited"})

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventGenerateFailed, sink.events[0].Name)
	assert.Equal(t, "u1", sink.events[0].UserID)
	assert.False(t, sink.events[0].Time.IsZero())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSinkWithLogger(zerolog.New(&buf))

	Emit(context.Background(), sink, EventBlueprintSaved, "u1", map[string]any{"blueprint_id": "b1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, EventBlueprintSaved, line["event"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "b1", line["blueprint_id"])
}
