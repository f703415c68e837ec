package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", func() {
	It("keeps messages in order", func() {
		b := newBuffer(0)
		for _, kind := range []string{JobQueuedKind, JobRunningKind, JobCompletedKind} {
			Expect(b.PushBack(&message{Kind: kind})).To(BeNil())
		}
		Expect(b.Len()).To(Equal(3))

		for _, want := range []string{JobQueuedKind, JobRunningKind, JobCompletedKind} {
			msg := b.Pop()
			Expect(msg).NotTo(BeNil())
			Expect(msg.Kind).To(Equal(want))
		}
		Expect(b.Pop()).To(BeNil())
	})

	It("evicts the oldest message when full", func() {
		b := newBuffer(2)
		Expect(b.PushBack(&message{Kind: JobQueuedKind})).To(BeNil())
		Expect(b.PushBack(&message{Kind: JobRunningKind})).To(BeNil())

		evicted := b.PushBack(&message{Kind: JobStageKind})
		Expect(evicted).NotTo(BeNil())
		Expect(evicted.Kind).To(Equal(JobQueuedKind))
		Expect(b.Len()).To(Equal(2))
		Expect(b.Pop().Kind).To(Equal(JobRunningKind))
	})
})
