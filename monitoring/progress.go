package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks the progress of one long-running transfer.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds a certain amount to the finished count.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveTo sets the finished count to an absolute value.
func (b *ProgressBar) MoveTo(finished uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished = finished
}
