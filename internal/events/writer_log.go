package events

import (
	"context"
	"encoding/json"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// LogWriter writes events to the process log. Used when no broker is configured.
type LogWriter struct {
	logger *zap.SugaredLogger
}

func NewLogWriter() *LogWriter {
	return &LogWriter{logger: zap.S().Named("event_log")}
}

func (w *LogWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	w.logger.Infow("event",
		"subject", Subject(topic, e.Type()),
		"id", e.ID(),
		"source", e.Source(),
		"time", e.Time(),
		"data", json.RawMessage(e.Data()),
	)
	return nil
}

func (w *LogWriter) Close(_ context.Context) error {
	return nil
}
