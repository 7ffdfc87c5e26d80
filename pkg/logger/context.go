package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	sendIDKey ctxKey = iota
	scheduleUUIDKey
)

// WithSendID tags the context with the log UUID of the send being processed.
func WithSendID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sendIDKey, id)
}

// WithScheduleUUID tags the context with the scheduled email being processed.
func WithScheduleUUID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scheduleUUIDKey, id)
}

// SendID extracts the send log UUID set by WithSendID.
func SendID(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(sendIDKey).(string); ok && id != "" {
		return slog.String("send_id", id), true
	}
	return slog.Attr{}, false
}

// ScheduleUUID extracts the scheduled email UUID set by WithScheduleUUID.
func ScheduleUUID(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(scheduleUUIDKey).(string); ok && id != "" {
		return slog.String("schedule_uuid", id), true
	}
	return slog.Attr{}, false
}
