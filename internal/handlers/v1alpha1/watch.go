package v1alpha1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/handlers/v1alpha1/mappers"
)

const watchWriteTimeout = 5 * time.Second

// (GET /jobs/{id}/watch)
//
// WatchJob streams a snapshot every time the job version changes and closes
// the socket once the job is terminal or has been deleted.
func (h *ServiceHandler) WatchJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())
	jobID := chi.URLParam(r, "id")

	job, err := h.jobSrv.GetJob(r.Context(), user.Username, jobID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Named("watch_handler").Warnw("websocket upgrade failed", "error", err, "job_id", jobID)
		return
	}
	defer conn.Close()

	// the reader only notices the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		return conn.WriteJSON(v) == nil
	}

	if !send(mappers.JobToApi(*job)) {
		return
	}
	lastVersion := job.Version

	ticker := jitterbug.New(h.watchInterval, &jitterbug.Norm{Stdev: h.watchInterval / 10})
	defer ticker.Stop()

	for !job.IsTerminal() {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}

		job, err = h.jobSrv.GetJob(r.Context(), user.Username, jobID)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "job is gone"),
				time.Now().Add(watchWriteTimeout))
			return
		}
		if job.Version == lastVersion {
			continue
		}
		if !send(mappers.JobToApi(*job)) {
			return
		}
		lastVersion = job.Version
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.State)),
		time.Now().Add(watchWriteTimeout))
}
