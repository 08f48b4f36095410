// Package publisher announces committed sync batches to downstream consumers
// (map refreshes, alerting). Publishing is best effort and never blocks or
// fails a sync.
package publisher

import "context"

// BatchNotice is the payload published after each committed batch.
type BatchNotice struct {
	RunID      string   `json:"run_id"`
	Dates      []string `json:"dates"`
	FirstID    int64    `json:"first_id"`
	LastID     int64    `json:"last_id"`
	Rows       int      `json:"rows"`
	BatchIndex int      `json:"batch_index"`
}

// Publisher delivers a payload to a named topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
