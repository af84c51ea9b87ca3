package server

import (
	"time"

	"github.com/realtechee/platform/dispatch"
)

// JobUpdateMessage is pushed to dashboard clients whenever a job changes
// state (queued, running, completed, failed, cancelled).
type JobUpdateMessage struct {
	Type      string         `json:"type"`
	Job       *dispatch.Job  `json:"job"`
	Timestamp int64          `json:"timestamp"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// startJobUpdateBroadcaster fans queue state changes out to every
// connected client. Slow clients get updates dropped, not the whole feed.
func (s *Server) startJobUpdateBroadcaster() {
	jobCh := s.queue.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case job, ok := <-jobCh:
				if !ok {
					return
				}
				s.broadcastJobUpdate(job)
			}
		}
	}()
}

func (s *Server) broadcastJobUpdate(job *dispatch.Job) {
	msg := JobUpdateMessage{
		Type:      "job_update",
		Job:       job,
		Timestamp: time.Now().Unix(),
	}
	if queued, running, err := s.queue.GetJobCounts(); err == nil {
		msg.Counts = map[string]int{"queued": queued, "running": running}
	}

	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			s.logger.Warnw("Client send channel full, dropping job update",
				"client_id", client.id,
				"job_id", shortID(job.ID))
		}
	}
}
