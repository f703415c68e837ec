package v1alpha1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/handlers/v1alpha1/mappers"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/pkg/log"
)

// (POST /jobs)
func (h *ServiceHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("create_job").Build()

	var body api.JobCreate
	if err := render.Bind(r, &body); err != nil {
		renderMessage(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	user := auth.MustHaveUser(r.Context())
	job, err := h.jobSrv.Submit(r.Context(), user, mappers.JobFormFromApi(body))
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithString("job_id", job.ID).Log()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.JobToApi(*job))
}

// (GET /jobs)
func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())
	filter := service.NewJobFilter(service.WithOwnerID(user.Username))

	query := r.URL.Query()
	for _, state := range query["state"] {
		filter = filter.WithOption(service.WithStates(model.JobState(state)))
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			renderMessage(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter = filter.WithOption(service.WithLimit(n))
	}

	jobs, err := h.jobSrv.ListJobs(r.Context(), filter)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobListToApi(jobs))
}

// (GET /jobs/{id})
func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	job, err := h.jobSrv.GetJob(r.Context(), user.Username, chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job))
}

// (DELETE /jobs/{id})
func (h *ServiceHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	if err := h.jobSrv.DeleteJob(r.Context(), user.Username, chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// (POST /jobs/{id}/cancel)
func (h *ServiceHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	job, err := h.jobSrv.CancelJob(r.Context(), user.Username, chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job))
}

// (PATCH /jobs/{id}/clips/{clipId})
func (h *ServiceHandler) UpdateClip(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").
		WithContext(r.Context()).
		Operation("update_clip").
		WithString("job_id", chi.URLParam(r, "id")).
		WithString("clip_id", chi.URLParam(r, "clipId")).
		Build()

	var body api.ClipUpdate
	if err := render.Bind(r, &body); err != nil {
		renderMessage(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	user := auth.MustHaveUser(r.Context())
	job, err := h.jobSrv.RenameClip(r.Context(), user.Username, chi.URLParam(r, "id"), chi.URLParam(r, "clipId"), mappers.ClipRenameFormFromApi(body))
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().Log()
	render.JSON(w, r, mappers.JobToApi(*job))
}

// (DELETE /jobs/{id}/clips/{clipId})
func (h *ServiceHandler) DeleteClip(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	job, err := h.jobSrv.DeleteClip(r.Context(), user.Username, chi.URLParam(r, "id"), chi.URLParam(r, "clipId"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobToApi(*job))
}

// (GET /health)
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, api.Health{Status: "unavailable"})
			return
		}
	}
	render.JSON(w, r, api.Health{Status: "ok"})
}
