package computation

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernhill/rookery/pkg/types"
)

// Record is the persisted shape of the last finished run, stored as
// computation.xml next to the log. It also carries the rolling duration
// window so estimates do not start cold after a restart.
type Record struct {
	XMLName     xml.Name `xml:"computation"`
	Timestamp   int64    `xml:"timestamp"` // milliseconds since epoch
	DurationMS  int64    `xml:"duration"`
	Result      string   `xml:"result"`
	CauseKind   string   `xml:"cause>kind,omitempty"`
	CauseOrigin string   `xml:"cause>origin,omitempty"`
	DurationsMS []int64  `xml:"durations>duration"`
}

// Start returns the recorded start as wall time.
func (r Record) Start() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Durations converts the persisted window back to durations.
func (r Record) Durations() []time.Duration {
	out := make([]time.Duration, 0, len(r.DurationsMS))
	for _, ms := range r.DurationsMS {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

// persistRecord writes the record atomically so readers never observe a
// torn file.
func (c *Computation) persistRecord(dir string, res types.Result, start time.Time, d time.Duration) error {
	rec := Record{
		Timestamp:   start.UnixMilli(),
		DurationMS:  d.Milliseconds(),
		Result:      string(res),
		CauseKind:   string(c.cause.Kind),
		CauseOrigin: c.cause.Origin,
	}
	if c.opts.History != nil {
		for _, hd := range c.opts.History.Snapshot() {
			rec.DurationsMS = append(rec.DurationsMS, hd.Milliseconds())
		}
	}

	data, err := xml.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal computation record: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	path := filepath.Join(dir, RecordFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write computation record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace computation record: %w", err)
	}
	return nil
}

// LoadRecord reads the last persisted record under dir. A missing file
// is not an error; ok is false.
func LoadRecord(dir string) (Record, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to read computation record: %w", err)
	}
	var rec Record
	if err := xml.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to parse computation record: %w", err)
	}
	return rec, true, nil
}
