// Package ws streams job progress to clients over websocket.
package ws

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kreativo/ai-gateway/internal/job"
)

const defaultInterval = 500 * time.Millisecond

// Server samples the job store on a ticker and pushes snapshots to each
// connected client until the watched job reaches a terminal state.
type Server struct {
	store    job.Store
	interval time.Duration
}

func NewServer(store job.Store) *Server {
	return &Server{store: store, interval: defaultInterval}
}

// ProgressMessage is one snapshot pushed to the client.
type ProgressMessage struct {
	Type         string  `json:"type"`
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ResultURL    string  `json:"result_url,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// HandleJob upgrades the connection and streams the job's state. The final
// message carries the terminal status, then the connection closes normally.
func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.store.Get(jobID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // cross-origin clients allowed
	})
	if err != nil {
		log.Printf("Websocket accept failed for job %s: %v", jobID, err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Progress feed opened for job %s", jobID)
	for {
		j, err := s.store.Get(jobID)
		if err != nil {
			// Evicted mid-watch. Tell the client and stop.
			conn.Close(websocket.StatusNormalClosure, "job expired")
			return
		}

		msg := ProgressMessage{
			Type:         "progress",
			JobID:        j.ID,
			Status:       string(j.Status),
			Progress:     j.Progress,
			ResultURL:    j.ResultURL,
			ErrorMessage: j.ErrorMessage,
		}
		if j.Status.Terminal() {
			msg.Type = "done"
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			log.Printf("Progress write for job %s failed: %v", jobID, err)
			return
		}
		if j.Status.Terminal() {
			conn.Close(websocket.StatusNormalClosure, "job finished")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
