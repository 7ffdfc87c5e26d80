// Package logger builds the application's slog loggers: JSON to stdout, with
// an optional Sentry fan-out for warnings and errors. Context extractors pull
// request- and delivery-scoped attributes (send ids, scheduled email uuids)
// into every record logged with that context.
package logger
