package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// wsObservation is the JSON shape a recognizer publishes per detection,
// mirroring the drop-file columns.
type wsObservation struct {
	Timestamp   string  `json:"timestamp"`
	RecBuffer   int64   `json:"rec_buffer_set"`
	DetectionID string  `json:"detection_id"`
	GalleryID   string  `json:"gallery_id"`
	Label       string  `json:"label"`
	CenterX     float64 `json:"center_x"`
	CenterY     float64 `json:"center_y"`
}

// WSSource consumes detection records from a recognizer publishing JSON
// observations over a local websocket. One Run is one connection; the
// caller reconnects on failure.
type WSSource struct {
	url     string
	records chan Record
}

// NewWSSource creates a source reading from the given websocket URL.
func NewWSSource(url string) *WSSource {
	return &WSSource{
		url:     url,
		records: make(chan Record, 64),
	}
}

// Records returns the delivery channel.
func (s *WSSource) Records() <-chan Record {
	return s.records
}

// Run dials the recognizer and pumps observations until the connection
// drops or the context is cancelled.
func (s *WSSource) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial detection feed %s: %w", s.url, err)
	}
	defer conn.Close()

	// Unblock the read loop when the context goes away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Info("detection feed connected", "url", s.url)

	for {
		var obs wsObservation
		if err := conn.ReadJSON(&obs); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read detection feed: %w", err)
		}

		rec, ok := s.convert(obs)
		if !ok {
			continue
		}
		select {
		case s.records <- rec:
		case <-ctx.Done():
			return nil
		}
	}
}

// convert validates one observation. Messages without a usable subject
// or detector id carry nothing to track and are skipped quietly.
func (s *WSSource) convert(obs wsObservation) (Record, bool) {
	if !usableID(obs.GalleryID) || !usableID(obs.DetectionID) {
		return Record{}, false
	}
	return Record{
		Sequence:   obs.RecBuffer,
		Timestamp:  parseTimestamp(obs.Timestamp, time.Now()),
		DetectorID: obs.DetectionID,
		SubjectID:  obs.GalleryID,
		X:          obs.CenterX,
		Y:          obs.CenterY,
	}, true
}
