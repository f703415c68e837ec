package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	api "github.com/clipforge/clipforge/api/v1alpha1"
)

const DefaultPollInterval = 5 * time.Second

// Supersedes reports whether next is a newer observation of the same job
// than last. Snapshots that would move state or stage backwards are older.
func Supersedes(next, last *api.Job) bool {
	if last == nil {
		return true
	}
	if next.State.Rank() != last.State.Rank() {
		return next.State.Rank() > last.State.Rank()
	}
	if next.CurrentStage != last.CurrentStage {
		return next.CurrentStage > last.CurrentStage
	}
	return next.Version > last.Version
}

// WaitForTerminal polls the job until it completes or fails. onUpdate is
// called for the first snapshot and every newer one.
func (c *Client) WaitForTerminal(ctx context.Context, id string, interval time.Duration, onUpdate func(*api.Job)) (*api.Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var last *api.Job
	observe := func() (bool, error) {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return false, err
		}
		if Supersedes(job, last) {
			last = job
			if onUpdate != nil {
				onUpdate(job)
			}
		}
		return last.State.IsTerminal(), nil
	}

	done, err := observe()
	if err != nil || done {
		return last, err
	}

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			done, err := observe()
			if err != nil {
				if IsStatus(err, http.StatusNotFound) {
					return last, err
				}
				zap.S().Named("client").Debugw("poll failed, retrying", "job_id", id, "error", err)
				continue
			}
			if done {
				return last, nil
			}
		}
	}
}

// Watch follows the job over the websocket stream until the server closes
// it. It returns the last snapshot seen.
func (c *Client) Watch(ctx context.Context, id string, onUpdate func(*api.Job)) (*api.Job, error) {
	u := c.endpoint("/jobs/"+id+"/watch", nil)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+id+"/watch", nil, nil)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), req.Header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("dialing %s: %w", u.Redacted(), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	var last *api.Job
	for {
		var job api.Job
		if err := conn.ReadJSON(&job); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return last, nil
			}
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}
		if Supersedes(&job, last) {
			last = &job
			if onUpdate != nil {
				onUpdate(last)
			}
		}
	}
}
