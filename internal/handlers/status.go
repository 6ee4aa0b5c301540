package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// StatusHandler streams job progress over WebSocket. Long recordings take
// many minutes to process, so clients watch the chunk counter instead of
// polling.
type StatusHandler struct {
	workerPool   *queue.WorkerPool
	pollInterval time.Duration
}

// NewStatusHandler creates a new status stream handler
func NewStatusHandler(workerPool *queue.WorkerPool) *StatusHandler {
	return &StatusHandler{
		workerPool:   workerPool,
		pollInterval: 2 * time.Second,
	}
}

// Handle pushes progress snapshots until the client disconnects. With a
// job_id query parameter only that job is streamed, and the stream closes
// once the job reaches a terminal status.
func (h *StatusHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Query("job_id")
	log.Printf("Status stream opened (job_id=%q)", jobID)

	for {
		var payload interface{}
		done := false

		if jobID != "" {
			job := h.workerPool.GetJob(jobID)
			if job == nil {
				c.WriteMessage(websocket.TextMessage, []byte(`{"error":"unknown job id"}`))
				return
			}
			snap := job.Snapshot()
			payload = snap
			done = snap.Status == types.StatusCompleted || snap.Status == types.StatusFailed
		} else {
			payload = h.workerPool.JobProgress()
		}

		msg, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Status stream marshal error: %v", err)
			return
		}

		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Status stream closed: %v", err)
			return
		}

		if done {
			return
		}
		time.Sleep(h.pollInterval)
	}
}
