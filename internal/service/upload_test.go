package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/internal/service/mappers"
)

type deleteRecorder struct {
	*objectstore.MemoryStore
	deleted []string
}

func (d *deleteRecorder) Delete(ctx context.Context, handle string) error {
	d.deleted = append(d.deleted, handle)
	return d.MemoryStore.Delete(ctx, handle)
}

var _ = Describe("upload service", func() {
	var (
		objects *objectstore.MemoryStore
		srv     *service.UploadService
	)

	BeforeEach(func() {
		objects = objectstore.NewMemoryStore("clipforge-uploads")
		srv = service.NewUploadService(objects, 64)
	})

	It("stores a video under the owner's prefix", func() {
		body := "not really a video"
		info, err := srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "talk.MP4", Size: int64(len(body))}, strings.NewReader(body))
		Expect(err).To(BeNil())
		Expect(info.Handle).To(HavePrefix("s3://clipforge-uploads/alice/"))
		Expect(info.Handle).To(HaveSuffix(".mp4"))
		Expect(info.ContentType).To(Equal("video/mp4"))

		stat, err := objects.Stat(context.TODO(), info.Handle)
		Expect(err).To(BeNil())
		Expect(stat.Size).To(Equal(int64(len(body))))
	})

	It("rejects files that are not videos", func() {
		_, err := srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "notes.txt", Size: 3}, strings.NewReader("abc"))
		var verr *service.ErrValidation
		Expect(errors.As(err, &verr)).To(BeTrue())

		_, err = srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "clip.mp4", ContentType: "text/plain", Size: 3}, strings.NewReader("abc"))
		Expect(errors.As(err, &verr)).To(BeTrue())
	})

	It("rejects files above the size limit", func() {
		body := strings.Repeat("x", 100)
		_, err := srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "big.mp4", Size: 100}, strings.NewReader(body))
		var verr *service.ErrValidation
		Expect(errors.As(err, &verr)).To(BeTrue())

		// declared size lies
		_, err = srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "big.mp4", Size: 10}, strings.NewReader(body))
		Expect(errors.As(err, &verr)).To(BeTrue())
	})

	It("removes an object that turned out larger than declared", func() {
		spy := &deleteRecorder{MemoryStore: objects}
		srv := service.NewUploadService(spy, 64)

		_, err := srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "big.mp4", Size: 10}, strings.NewReader(strings.Repeat("x", 100)))
		var verr *service.ErrValidation
		Expect(errors.As(err, &verr)).To(BeTrue())

		Expect(spy.deleted).To(HaveLen(1))
		Expect(spy.deleted[0]).To(HavePrefix("s3://clipforge-uploads/alice/"))
		_, err = objects.Stat(context.TODO(), spy.deleted[0])
		Expect(err).To(MatchError(objectstore.ErrObjectNotFound))
	})

	It("refuses uploads without an object store", func() {
		srv := service.NewUploadService(nil, 0)
		Expect(srv.Enabled()).To(BeFalse())

		_, err := srv.Upload(context.TODO(), alice, mappers.UploadForm{Filename: "a.mp4"}, strings.NewReader("a"))
		var disabled *service.ErrUploadsDisabled
		Expect(errors.As(err, &disabled)).To(BeTrue())
	})
})
