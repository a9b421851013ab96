// Package feed delivers detection records from the external perception
// pipeline to the tracking loop. Sources share one Record type and one
// delivery contract: records arrive with non-decreasing sequence numbers
// per subject, and malformed observations are dropped at the edge.
package feed

import (
	"context"
	"time"
)

// Record is one observation from the perception pipeline.
type Record struct {
	Sequence   int64     // frame/buffer ordinal, unique per source session
	Timestamp  time.Time // wall-clock time of the observation
	DetectorID string    // ephemeral identity assigned by the low-level detector
	SubjectID  string    // stable gallery identity for the subject
	X, Y       float64   // pixel position of the subject's reference point
}

// Source is the interface for detection record producers.
// Run pumps records onto the Records channel until the context is
// cancelled or the underlying stream ends.
type Source interface {
	Records() <-chan Record
	Run(ctx context.Context) error
}

// ChannelSource is an in-process Source fed by Push.
// It backs tests and the replay harness.
type ChannelSource struct {
	ch chan Record
}

// NewChannelSource creates a channel-backed source with the given buffer.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSource{ch: make(chan Record, buffer)}
}

// Push queues a record for delivery. It drops the record if the buffer
// is full rather than blocking the producer.
func (s *ChannelSource) Push(r Record) bool {
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

// Records returns the delivery channel.
func (s *ChannelSource) Records() <-chan Record {
	return s.ch
}

// Run blocks until the context is cancelled. Delivery happens on Push.
func (s *ChannelSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
