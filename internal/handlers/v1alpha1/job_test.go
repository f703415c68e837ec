package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	handlers "github.com/clipforge/clipforge/internal/handlers/v1alpha1"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/pkg/middleware"
)

const userHeader = "X-Test-User"

// testAuth takes the caller from a header; requests without it are refused.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get(userHeader)
		if name == "" {
			http.Error(w, "No token provided", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.NewUserContext(r.Context(), auth.User{Username: name})))
	})
}

type client struct {
	baseURL string
}

func (c client) do(method, path, user string, body any) (*http.Response, []byte) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).To(BeNil())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	Expect(err).To(BeNil())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(userHeader, user)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).To(BeNil())
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	Expect(err).To(BeNil())
	return resp, buf.Bytes()
}

func decode[T any](data []byte) T {
	var v T
	Expect(json.Unmarshal(data, &v)).To(Succeed())
	return v
}

var _ = Describe("job handlers", Ordered, func() {
	var (
		s       store.Store
		gormdb  *gorm.DB
		runner  *pipeline.Runner
		objects *objectstore.MemoryStore
		ts      *httptest.Server
		c       client
	)

	demo := func() api.JobCreate {
		title := "Demo"
		return api.JobCreate{SourceKind: api.SourceKindRemoteUrl, SourceRef: "https://youtu.be/abc12345678", Title: &title}
	}

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		gormdb = db
		Expect(s.Migrate()).To(Succeed())

		objects = objectstore.NewMemoryStore("clipforge-uploads")
		runner = pipeline.NewRunner(s, pipeline.Options{StageDelay: 20 * time.Millisecond, StageTimeout: time.Second}, pipeline.WithObjectStore(objects))

		h := handlers.NewServiceHandler(
			service.NewJobService(s, nil),
			service.NewUploadService(objects, 1024),
			handlers.WithWatchInterval(10*time.Millisecond),
			handlers.WithHealthCheck(func(r *http.Request) error { return s.Ping(r.Context()) }),
		)

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		handlers.HealthFromMux(h, router)
		router.Group(func(r chi.Router) {
			r.Use(testAuth)
			handlers.HandlerFromMux(h, r)
		})

		ts = httptest.NewServer(router)
		c = client{baseURL: ts.URL}
	})

	AfterAll(func() {
		ts.Close()
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM jobs;")
	})

	submit := func(user string) api.Job {
		resp, body := c.do(http.MethodPost, "/jobs", user, demo())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		return decode[api.Job](body)
	}

	complete := func(user string) api.Job {
		job := submit(user)
		runner.Run(context.TODO(), job.Id)
		resp, body := c.do(http.MethodGet, "/jobs/"+job.Id, user, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		job = decode[api.Job](body)
		Expect(job.State).To(Equal(api.JobStateCompleted))
		return job
	}

	Context("create", func() {
		It("successfully creates a job", func() {
			job := submit("alice")
			Expect(job.Id).ToNot(BeEmpty())
			Expect(job.State).To(Equal(api.JobStateQueued))
			Expect(job.Title).To(Equal("Demo"))
			Expect(job.Clips).ToNot(BeNil())
			Expect(job.Clips).To(BeEmpty())
		})

		It("fails with 400 on an empty source ref", func() {
			body := demo()
			body.SourceRef = ""
			resp, data := c.do(http.MethodPost, "/jobs", "alice", body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			apiErr := decode[api.Error](data)
			Expect(apiErr.Message).To(ContainSubstring("sourceRef is required"))
			Expect(apiErr.RequestId).ToNot(BeNil())

			var count int64
			Expect(gormdb.Table("jobs").Count(&count).Error).To(BeNil())
			Expect(count).To(BeZero())
		})

		It("fails with 400 on a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/jobs", strings.NewReader("{"))
			Expect(err).To(BeNil())
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(userHeader, "alice")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("fails with 401 without a caller", func() {
			resp, _ := c.do(http.MethodPost, "/jobs", "", demo())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Context("read", func() {
		It("returns 404 for another owner's job", func() {
			job := submit("bob")
			resp, _ := c.do(http.MethodGet, "/jobs/"+job.Id, "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("lists the caller's jobs newest first", func() {
			first := submit("alice")
			time.Sleep(5 * time.Millisecond)
			second := submit("alice")
			submit("bob")

			resp, data := c.do(http.MethodGet, "/jobs", "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			jobs := decode[api.JobList](data)
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].Id).To(Equal(second.Id))
			Expect(jobs[1].Id).To(Equal(first.Id))

			resp, data = c.do(http.MethodGet, "/jobs?state=completed", "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[api.JobList](data)).To(BeEmpty())
		})
	})

	Context("clips", func() {
		It("renames and deletes clips of a completed job", func() {
			job := complete("alice")
			Expect(job.Clips).To(HaveLen(5))
			clipID := job.Clips[1].Id

			resp, data := c.do(http.MethodPatch, fmt.Sprintf("/jobs/%s/clips/%s", job.Id, clipID), "alice", api.ClipUpdate{Title: "Opening"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[api.Job](data).Clips[1].Title).To(Equal("Opening"))

			resp, data = c.do(http.MethodDelete, fmt.Sprintf("/jobs/%s/clips/%s", job.Id, clipID), "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[api.Job](data).Clips).To(HaveLen(4))

			resp, _ = c.do(http.MethodDelete, fmt.Sprintf("/jobs/%s/clips/%s", job.Id, clipID), "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns 409 when the job is not completed", func() {
			job := submit("alice")
			resp, _ := c.do(http.MethodPatch, fmt.Sprintf("/jobs/%s/clips/%s", job.Id, "any"), "alice", api.ClipUpdate{Title: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("returns 404 for another owner's clip", func() {
			job := complete("alice")
			resp, _ := c.do(http.MethodPatch, fmt.Sprintf("/jobs/%s/clips/%s", job.Id, job.Clips[0].Id), "bob", api.ClipUpdate{Title: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Context("delete and cancel", func() {
		It("deletes a job", func() {
			job := complete("alice")
			resp, _ := c.do(http.MethodDelete, "/jobs/"+job.Id, "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, _ = c.do(http.MethodGet, "/jobs/"+job.Id, "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			resp, _ = c.do(http.MethodDelete, "/jobs/"+job.Id, "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("cancels a queued job and refuses a completed one", func() {
			job := submit("alice")
			resp, data := c.do(http.MethodPost, "/jobs/"+job.Id+"/cancel", "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[api.Job](data).CancelRequested).To(BeTrue())

			done := complete("alice")
			resp, _ = c.do(http.MethodPost, "/jobs/"+done.Id+"/cancel", "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Context("uploads", func() {
		It("stores an uploaded video", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", "talk.mp4")
			Expect(err).To(BeNil())
			_, err = part.Write([]byte("fake video"))
			Expect(err).To(BeNil())
			Expect(mw.Close()).To(Succeed())

			req, err := http.NewRequest(http.MethodPost, ts.URL+"/uploads", &buf)
			Expect(err).To(BeNil())
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set(userHeader, "alice")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var upload api.Upload
			Expect(json.NewDecoder(resp.Body).Decode(&upload)).To(Succeed())
			Expect(upload.Handle).To(HavePrefix("s3://clipforge-uploads/alice/"))

			resp2, data := c.do(http.MethodPost, "/jobs", "alice", api.JobCreate{SourceKind: api.SourceKindUploadedFile, SourceRef: upload.Handle})
			Expect(resp2.StatusCode).To(Equal(http.StatusCreated))
			job := decode[api.Job](data)

			Expect(runner.Run(context.TODO(), job.Id).ErrorReason).To(BeEmpty())
		})

		It("refuses to process another user's upload", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", "secret.mp4")
			Expect(err).To(BeNil())
			_, err = part.Write([]byte("fake video"))
			Expect(err).To(BeNil())
			Expect(mw.Close()).To(Succeed())

			req, err := http.NewRequest(http.MethodPost, ts.URL+"/uploads", &buf)
			Expect(err).To(BeNil())
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set(userHeader, "alice")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var upload api.Upload
			Expect(json.NewDecoder(resp.Body).Decode(&upload)).To(Succeed())

			resp2, _ := c.do(http.MethodPost, "/jobs", "bob", api.JobCreate{SourceKind: api.SourceKindUploadedFile, SourceRef: upload.Handle})
			Expect(resp2.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 413 for a body above the upload limit", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", "huge.mp4")
			Expect(err).To(BeNil())
			_, err = part.Write(bytes.Repeat([]byte("x"), 256<<10))
			Expect(err).To(BeNil())
			Expect(mw.Close()).To(Succeed())

			req, err := http.NewRequest(http.MethodPost, ts.URL+"/uploads", &buf)
			Expect(err).To(BeNil())
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set(userHeader, "alice")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
		})

		It("returns 400 without a file", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("name", "x")).To(Succeed())
			Expect(mw.Close()).To(Succeed())

			req, err := http.NewRequest(http.MethodPost, ts.URL+"/uploads", &buf)
			Expect(err).To(BeNil())
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set(userHeader, "alice")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("watch", func() {
		It("streams snapshots until the job is terminal", func() {
			job := submit("alice")

			header := http.Header{}
			header.Set(userHeader, "alice")
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/jobs/" + job.Id + "/watch"
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
			Expect(err).To(BeNil())
			defer conn.Close()

			go func() {
				defer GinkgoRecover()
				runner.Run(context.TODO(), job.Id)
			}()

			var snapshots []api.Job
			Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			for {
				var snap api.Job
				if err := conn.ReadJSON(&snap); err != nil {
					Expect(websocket.IsCloseError(err, websocket.CloseNormalClosure)).To(BeTrue())
					break
				}
				snapshots = append(snapshots, snap)
			}

			Expect(snapshots).ToNot(BeEmpty())
			Expect(snapshots[0].State).To(Equal(api.JobStateQueued))
			last := snapshots[len(snapshots)-1]
			Expect(last.State).To(Equal(api.JobStateCompleted))
			Expect(last.Clips).To(HaveLen(5))

			for i := 1; i < len(snapshots); i++ {
				Expect(snapshots[i].State.Rank()).To(BeNumerically(">=", snapshots[i-1].State.Rank()))
				Expect(snapshots[i].CurrentStage).To(BeNumerically(">=", snapshots[i-1].CurrentStage))
			}
		})

		It("returns 404 before upgrading for a foreign job", func() {
			job := submit("bob")
			resp, _ := c.do(http.MethodGet, "/jobs/"+job.Id+"/watch", "alice", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	It("reports health", func() {
		resp, data := c.do(http.MethodGet, "/health", "alice", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(decode[api.Health](data).Status).To(Equal("ok"))
	})
})
