package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/clipforge/pkg/metrics"
)

const defaultTopic string = "clipforge.jobs"

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer buffers events so callers never wait on the writer.
type EventProducer struct {
	buffer *buffer
	notify chan struct{}
	doneCh chan struct{}
	exitCh chan struct{}
	writer Writer
	topic  string
	source string
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer: newBuffer(0),
		notify: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
		exitCh: make(chan struct{}),
		writer: w,
		topic:  defaultTopic,
		source: eventSource,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, body io.Reader) error {
	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	evicted := ep.buffer.PushBack(&message{
		Kind:     kind,
		Data:     d,
		QueuedAt: time.Now().UTC(),
	})
	if evicted != nil {
		metrics.IncreaseEventsDroppedTotalMetric(evicted.Kind)
		zap.S().Named("event_producer").Warnw("event queue full, dropped oldest event", "event_type", evicted.Kind)
	}

	select {
	case ep.notify <- struct{}{}:
	default:
	}

	return nil
}

// WriteJSON marshals v and queues it under kind.
func (ep *EventProducer) WriteJSON(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ep.Write(ctx, kind, bytes.NewReader(data))
}

// Close flushes pending events and closes the writer.
func (ep *EventProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(ep.doneCh)
	select {
	case <-ep.exitCh:
	case <-closeCtx.Done():
	}

	if err := ep.writer.Close(closeCtx); err != nil {
		zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event_producer").Info("event producer closed")
	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.exitCh)

	for {
		for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
			ep.send(msg)
		}

		select {
		case <-ep.notify:
		case <-ep.doneCh:
			for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
				ep.send(msg)
			}
			return
		}
	}
}

func (ep *EventProducer) send(msg *message) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(ep.source)
	e.SetType(msg.Kind)
	e.SetTime(msg.QueuedAt)
	if err := e.SetData(cloudevents.ApplicationJSON, msg.Data); err != nil {
		zap.S().Named("event_producer").Errorw("failed to encode event", "error", err, "event_type", msg.Kind)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ep.writer.Write(ctx, ep.topic, e)
	metrics.IncreaseEventsPublishedTotalMetric(msg.Kind, err == nil)
	if err != nil {
		zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "event_type", e.Type(), "event_id", e.ID())
	}
}
