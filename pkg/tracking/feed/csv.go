package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// Drop-file column layout written by the perception pipeline:
// Timestamp, Rec_BufferSet, Detection_ID, Gallery_ID, Label, Center_X, Center_Y
const (
	colTimestamp = iota
	colSequence
	colDetectionID
	colGalleryID
	colLabel
	colCenterX
	colCenterY
	csvColumns
)

// CSVSource tails the perception pipeline's CSV drop file. Each poll it
// reads the newest row (largest Rec_BufferSet) and emits it once the
// sequence advances past the last emitted one. Rows with a missing
// gallery id or unparseable fields are skipped.
type CSVSource struct {
	path     string
	interval time.Duration
	clock    clock.Clock

	records chan Record
	lastSeq int64
}

// NewCSVSource creates a source tailing the drop file at path,
// polling at the given interval.
func NewCSVSource(path string, interval time.Duration) *CSVSource {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &CSVSource{
		path:     path,
		interval: interval,
		clock:    clock.New(),
		records:  make(chan Record, 64),
		lastSeq:  -1,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *CSVSource) SetClock(c clock.Clock) {
	s.clock = c
}

// Records returns the delivery channel.
func (s *CSVSource) Records() <-chan Record {
	return s.records
}

// Run polls the drop file until the context is cancelled.
// A missing file is not an error; the pipeline may not have started yet.
func (s *CSVSource) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rec, ok := s.latest()
			if !ok || rec.Sequence <= s.lastSeq {
				continue
			}
			s.lastSeq = rec.Sequence
			select {
			case s.records <- rec:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// latest reads the drop file and returns the newest parseable row.
func (s *CSVSource) latest() (Record, bool) {
	f, err := os.Open(s.path)
	if err != nil {
		return Record{}, false
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validate per row; the writer can race a partial line
	rows, err := r.ReadAll()
	if err != nil {
		log.Debug("drop file unreadable", "path", s.path, "error", err)
		return Record{}, false
	}
	if len(rows) <= 1 {
		return Record{}, false // header only or empty
	}

	var (
		best  Record
		found bool
	)
	now := s.clock.Now()
	for _, row := range rows[1:] {
		rec, ok := parseRow(row, now)
		if !ok {
			continue
		}
		if !found || rec.Sequence > best.Sequence {
			best = rec
			found = true
		}
	}
	return best, found
}

// ReadAll loads every usable row from a drop file, sorted by sequence.
// The replay harness uses it to run a recorded session back through
// the pipeline.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open drop file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read drop file: %w", err)
	}

	var out []Record
	now := time.Now()
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if rec, ok := parseRow(row, now); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// parseRow converts one CSV row into a Record. Rows that do not carry a
// usable subject are silently skipped; rows with unparseable numeric
// fields are dropped with a diagnostic.
func parseRow(row []string, now time.Time) (Record, bool) {
	if len(row) < csvColumns {
		return Record{}, false
	}
	if !usableID(row[colGalleryID]) || !usableID(row[colDetectionID]) {
		return Record{}, false
	}

	seq, err := strconv.ParseInt(row[colSequence], 10, 64)
	if err != nil {
		log.Debug("malformed detection row", "field", "Rec_BufferSet", "value", row[colSequence])
		return Record{}, false
	}
	x, err := strconv.ParseFloat(row[colCenterX], 64)
	if err != nil {
		log.Debug("malformed detection row", "field", "Center_X", "value", row[colCenterX])
		return Record{}, false
	}
	y, err := strconv.ParseFloat(row[colCenterY], 64)
	if err != nil {
		log.Debug("malformed detection row", "field", "Center_Y", "value", row[colCenterY])
		return Record{}, false
	}

	return Record{
		Sequence:   seq,
		Timestamp:  parseTimestamp(row[colTimestamp], now),
		DetectorID: row[colDetectionID],
		SubjectID:  row[colGalleryID],
		X:          x,
		Y:          y,
	}, true
}

// usableID reports whether an id field carries a real identity.
// The pipeline writes "null" or "nd" when recognition has no answer.
func usableID(id string) bool {
	switch id {
	case "", "null", "nd":
		return false
	}
	return true
}

// parseTimestamp accepts RFC3339 timestamps and falls back to the read
// time; window accounting runs on processing time either way.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}
