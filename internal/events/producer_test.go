package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", func() {
	It("writes events in order", func() {
		w := newTestWriter()
		p := NewEventProducer(w, WithOutputTopic("test.jobs"))

		Expect(p.Write(context.TODO(), JobQueuedKind, bytes.NewReader([]byte(`{"n":1}`)))).To(Succeed())
		Expect(p.WriteJSON(context.TODO(), JobCompletedKind, JobEvent{JobID: "j1", State: "completed", ClipCount: 5})).To(Succeed())

		Eventually(w.Len).Should(Equal(2))
		msgs := w.Snapshot()
		Expect(msgs[0].Type()).To(Equal(JobQueuedKind))
		Expect(msgs[1].Type()).To(Equal(JobCompletedKind))
		Expect(msgs[1].Source()).To(Equal(eventSource))
		Expect(msgs[1].DataContentType()).To(Equal(cloudevents.ApplicationJSON))
		Expect(msgs[1].Validate()).To(Succeed())
		Expect(w.topics[0]).To(Equal("test.jobs"))

		var ev JobEvent
		Expect(msgs[1].DataAs(&ev)).To(Succeed())
		Expect(ev.JobID).To(Equal("j1"))
		Expect(ev.ClipCount).To(Equal(5))

		wire, err := json.Marshal(msgs[1])
		Expect(err).To(BeNil())
		Expect(string(wire)).To(ContainSubstring(`"specversion":"1.0"`))
		Expect(string(wire)).To(ContainSubstring(`"type":"clipforge.jobs.completed"`))

		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})

	It("flushes pending events on close", func() {
		w := newTestWriter()
		p := NewEventProducer(w)
		for i := 0; i < 20; i++ {
			Expect(p.WriteJSON(context.TODO(), JobStageKind, JobEvent{Version: i})).To(Succeed())
		}
		Expect(p.Close()).To(Succeed())
		Expect(w.Len()).To(Equal(20))
	})

	It("stamps the configured source and the time the event was queued", func() {
		w := newTestWriter()
		p := NewEventProducer(w, WithSource("clipforge.worker"), WithMaxPending(100))
		before := time.Now().UTC()
		Expect(p.WriteJSON(context.TODO(), JobFailedKind, JobEvent{JobID: "j2", ErrorReason: "Cancelled"})).To(Succeed())
		Expect(p.Close()).To(Succeed())

		msgs := w.Snapshot()
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Source()).To(Equal("clipforge.worker"))
		Expect(msgs[0].Time()).To(BeTemporally(">=", before))
		Expect(msgs[0].ID()).ToNot(BeEmpty())
	})

	It("builds subjects from the event kind", func() {
		Expect(Subject("clipforge.jobs", JobCompletedKind)).To(Equal("clipforge.jobs.completed"))
		Expect(Subject("clipforge.jobs", ClipDeletedKind)).To(Equal("clipforge.jobs.clips.deleted"))
	})
})

type testwriter struct {
	mu       sync.Mutex
	messages []cloudevents.Event
	topics   []string
	closed   bool
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *testwriter) Snapshot() []cloudevents.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]cloudevents.Event{}, t.messages...)
}

func (t *testwriter) Close(_ context.Context) error {
	t.closed = true
	return nil
}
