package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/nats-io/nats.go"
)

// NatsWriter publishes every event in structured cloudevents JSON on
// "<topic>.<kind suffix>", e.g. clipforge.jobs.completed.
type NatsWriter struct {
	nc *nats.Conn
}

func NewNatsWriter(url string) (*NatsWriter, error) {
	nc, err := nats.Connect(url,
		nats.Name("clipforge-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NatsWriter{nc: nc}, nil
}

func (n *NatsWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.nc.Publish(Subject(topic, e.Type()), data)
}

func (n *NatsWriter) Close(_ context.Context) error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

// Subject returns the subject an event kind is published on.
func Subject(topic, kind string) string {
	suffix := kind
	if i := strings.LastIndex(kind, "."); i >= 0 {
		suffix = kind[i+1:]
	}
	if strings.HasPrefix(kind, "clipforge.clips.") {
		suffix = "clips." + suffix
	}
	return topic + "." + suffix
}
