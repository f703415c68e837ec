package client_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/riverqueue/river/riverdriver/riversqlite"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/client"
	"github.com/clipforge/clipforge/internal/config"
	handlers "github.com/clipforge/clipforge/internal/handlers/v1alpha1"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/pkg/middleware"
)

var _ = Describe("client", Ordered, func() {
	var (
		s      store.Store
		ts     *httptest.Server
		c      *client.Client
		cancel context.CancelFunc
	)

	demo := func() api.JobCreate {
		title := "Demo"
		return api.JobCreate{SourceKind: api.SourceKindRemoteUrl, SourceRef: "https://youtu.be/abc12345678", Title: &title}
	}

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.Migrate()).To(Succeed())

		objects := objectstore.NewMemoryStore("clipforge-uploads")
		runner := pipeline.NewRunner(s, pipeline.Options{StageDelay: 20 * time.Millisecond, StageTimeout: time.Second}, pipeline.WithObjectStore(objects))
		sqlDB, err := db.DB()
		Expect(err).To(BeNil())
		Expect(pipeline.MigrateQueue[*sql.Tx](context.TODO(), riversqlite.New(sqlDB))).To(Succeed())
		queue, err := pipeline.NewQueue[*sql.Tx](riversqlite.New(sqlDB), s, runner, pipeline.QueueOptions{Workers: 2, RequeueInterval: time.Second})
		Expect(err).To(BeNil())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go func() { _ = queue.Run(ctx) }()

		h := handlers.NewServiceHandler(
			service.NewJobService(s, queue),
			service.NewUploadService(objects, 1024),
			handlers.WithWatchInterval(10*time.Millisecond),
		)
		authenticator, err := auth.NewNoneAuthenticator()
		Expect(err).To(BeNil())

		router := chi.NewRouter()
		router.Use(middleware.RequestID, authenticator.Authenticator)
		handlers.HandlerFromMux(h, router)
		ts = httptest.NewServer(router)

		c, err = client.NewClient(ts.URL)
		Expect(err).To(BeNil())
	})

	AfterAll(func() {
		cancel()
		ts.Close()
		s.Close()
	})

	It("creates and reads back a job", func() {
		job, err := c.CreateJob(context.TODO(), demo())
		Expect(err).To(BeNil())
		Expect(job.State).To(Equal(api.JobStateQueued))
		Expect(job.OwnerId).To(Equal(auth.DevUsername))

		got, err := c.GetJob(context.TODO(), job.Id)
		Expect(err).To(BeNil())
		Expect(got.Id).To(Equal(job.Id))

		jobs, err := c.ListJobs(context.TODO(), client.ListJobsParams{Limit: 10})
		Expect(err).To(BeNil())
		Expect(jobs).ToNot(BeEmpty())
	})

	It("surfaces error bodies", func() {
		_, err := c.GetJob(context.TODO(), "missing")
		Expect(err).ToNot(BeNil())
		Expect(client.IsStatus(err, http.StatusNotFound)).To(BeTrue())

		_, err = c.CreateJob(context.TODO(), api.JobCreate{SourceKind: api.SourceKindRemoteUrl, SourceRef: "not a url"})
		Expect(client.IsStatus(err, http.StatusBadRequest)).To(BeTrue())
	})

	It("polls a job until it completes without going backwards", func() {
		job, err := c.CreateJob(context.TODO(), demo())
		Expect(err).To(BeNil())

		var seen []api.Job
		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		final, err := c.WaitForTerminal(ctx, job.Id, 15*time.Millisecond, func(j *api.Job) {
			seen = append(seen, *j)
		})
		Expect(err).To(BeNil())
		Expect(final.State).To(Equal(api.JobStateCompleted))
		Expect(final.Clips).To(HaveLen(5))

		for i := 1; i < len(seen); i++ {
			Expect(client.Supersedes(&seen[i], &seen[i-1])).To(BeTrue())
		}
	})

	It("follows a job over the watch stream", func() {
		job, err := c.CreateJob(context.TODO(), demo())
		Expect(err).To(BeNil())

		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		final, err := c.Watch(ctx, job.Id, nil)
		Expect(err).To(BeNil())
		Expect(final).ToNot(BeNil())
		Expect(final.State).To(Equal(api.JobStateCompleted))
	})

	It("edits and deletes a completed job", func() {
		job, err := c.CreateJob(context.TODO(), demo())
		Expect(err).To(BeNil())
		final, err := c.WaitForTerminal(context.TODO(), job.Id, 15*time.Millisecond, nil)
		Expect(err).To(BeNil())

		view := client.NewJobView(c, *final)
		clipID := final.Clips[0].Id
		Expect(view.RenameClip(context.TODO(), clipID, "Best moment")).To(Succeed())
		Expect(view.Job().Clips[0].Title).To(Equal("Best moment"))
		Expect(view.Job().Version).To(BeNumerically(">", final.Version))

		Expect(view.DeleteClip(context.TODO(), clipID)).To(Succeed())
		Expect(view.Job().Clips).To(HaveLen(4))

		Expect(c.DeleteJob(context.TODO(), job.Id)).To(Succeed())
		_, err = c.GetJob(context.TODO(), job.Id)
		Expect(client.IsStatus(err, http.StatusNotFound)).To(BeTrue())
	})

	It("cancels a job", func() {
		job, err := c.CreateJob(context.TODO(), demo())
		Expect(err).To(BeNil())
		_, err = c.CancelJob(context.TODO(), job.Id)
		Expect(err).To(BeNil())

		final, err := c.WaitForTerminal(context.TODO(), job.Id, 15*time.Millisecond, nil)
		Expect(err).To(BeNil())
		Expect(final.State).To(Equal(api.JobStateFailed))
		Expect(final.Clips).To(BeEmpty())
	})

	It("uploads a video and runs it", func() {
		upload, err := c.Upload(context.TODO(), "talk.mp4", "video/mp4", strings.NewReader("not really a video"))
		Expect(err).To(BeNil())
		Expect(upload.Handle).To(HavePrefix("s3://"))

		job, err := c.CreateJob(context.TODO(), api.JobCreate{SourceKind: api.SourceKindUploadedFile, SourceRef: upload.Handle})
		Expect(err).To(BeNil())
		final, err := c.WaitForTerminal(context.TODO(), job.Id, 15*time.Millisecond, nil)
		Expect(err).To(BeNil())
		Expect(final.State).To(Equal(api.JobStateCompleted))
	})
})
