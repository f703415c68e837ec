package events

type ProducerOptions func(e *EventProducer)

// WithOutputTopic sets the subject prefix events are published under.
func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		if topic != "" {
			e.topic = topic
		}
	}
}

// WithSource overrides the source stamped on every event envelope.
func WithSource(source string) ProducerOptions {
	return func(e *EventProducer) {
		e.source = source
	}
}

// WithMaxPending bounds the number of queued events. Once full the oldest
// event is dropped. Zero means unbounded.
func WithMaxPending(n int) ProducerOptions {
	return func(e *EventProducer) {
		e.buffer = newBuffer(n)
	}
}
