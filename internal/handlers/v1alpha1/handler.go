package v1alpha1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/clipforge/clipforge/internal/service"
)

const defaultWatchInterval = time.Second

type ServiceHandler struct {
	jobSrv        *service.JobService
	uploadSrv     *service.UploadService
	health        func(r *http.Request) error
	upgrader      websocket.Upgrader
	watchInterval time.Duration
}

type HandlerOption func(h *ServiceHandler)

// WithHealthCheck sets the check behind GET /health.
func WithHealthCheck(fn func(r *http.Request) error) HandlerOption {
	return func(h *ServiceHandler) {
		h.health = fn
	}
}

func WithWatchInterval(d time.Duration) HandlerOption {
	return func(h *ServiceHandler) {
		h.watchInterval = d
	}
}

// WithAllowedOrigins restricts websocket upgrades to the given origins. An
// empty list accepts any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *ServiceHandler) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

func NewServiceHandler(jobService *service.JobService, uploadService *service.UploadService, opts ...HandlerOption) *ServiceHandler {
	h := &ServiceHandler{
		jobSrv:        jobService,
		uploadSrv:     uploadService,
		watchInterval: defaultWatchInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HealthFromMux registers the unauthenticated health route on r.
func HealthFromMux(h *ServiceHandler, r chi.Router) {
	r.Get("/health", h.Health)
}

// HandlerFromMux registers the job and upload routes on r.
func HandlerFromMux(h *ServiceHandler, r chi.Router) http.Handler {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Post("/", h.CreateJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Delete("/", h.DeleteJob)
			r.Post("/cancel", h.CancelJob)
			r.Get("/watch", h.WatchJob)
			r.Patch("/clips/{clipId}", h.UpdateClip)
			r.Delete("/clips/{clipId}", h.DeleteClip)
		})
	})

	r.Post("/uploads", h.UploadVideo)
	return r
}
