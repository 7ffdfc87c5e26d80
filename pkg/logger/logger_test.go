package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_ExtractsSendID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newContextHandler(slog.NewJSONHandler(&buf, nil), SendID, ScheduleUUID)
	log := slog.New(h)

	ctx := WithSendID(context.Background(), "log-123")
	ctx = WithScheduleUUID(ctx, "sched-456")
	log.InfoContext(ctx, "delivering")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "log-123", rec["send_id"])
	assert.Equal(t, "sched-456", rec["schedule_uuid"])
}

func TestContextHandler_NoValueNoAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newContextHandler(slog.NewJSONHandler(&buf, nil), SendID)
	slog.New(h).InfoContext(context.Background(), "plain")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, ok := rec["send_id"]
	assert.False(t, ok)
}

func TestContextHandler_FiltersNilExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newContextHandler(slog.NewJSONHandler(&buf, nil), nil, SendID)
	log := slog.New(h)

	assert.NotPanics(t, func() {
		log.InfoContext(WithSendID(context.Background(), "x"), "ok")
	})
}
