package trainer

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FeedbackRecord is one played interval: the note heard and how long it
// was held. On the wire it is a single-key object, {"C4": 0.5}.
type FeedbackRecord struct {
	Note     string
	Duration float64 // seconds
	Expected string  // note the song asked for at the time
	At       time.Time
}

// Correct reports whether the played note was the expected one
func (r FeedbackRecord) Correct() bool {
	return r.Note == r.Expected
}

// MarshalJSON encodes the record as {"<note>": <seconds>}
func (r FeedbackRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{r.Note: r.Duration})
}

// UnmarshalJSON decodes a single-key {"<note>": <seconds>} object
func (r *FeedbackRecord) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("feedback record must have exactly one note, got %d", len(m))
	}
	for note, d := range m {
		r.Note = note
		r.Duration = d
	}
	return nil
}

// NoteSummary aggregates the feedback of one note
type NoteSummary struct {
	Note         string  `json:"note"`
	Count        int     `json:"count"`
	Correct      int     `json:"correct"`
	MeanDuration float64 `json:"mean_duration"`
	StdDuration  float64 `json:"std_duration"`
	Total        float64 `json:"total"`
}

// FeedbackLog collects feedback records. It is safe for concurrent use so
// the companion server can read it while a session appends.
type FeedbackLog struct {
	mu      sync.RWMutex
	records []FeedbackRecord
}

// NewFeedbackLog creates an empty log
func NewFeedbackLog() *FeedbackLog {
	return &FeedbackLog{}
}

// Append adds a record
func (fl *FeedbackLog) Append(record FeedbackRecord) {
	fl.mu.Lock()
	fl.records = append(fl.records, record)
	fl.mu.Unlock()
}

// Records returns a copy of all records in order
func (fl *FeedbackLog) Records() []FeedbackRecord {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	out := make([]FeedbackRecord, len(fl.records))
	copy(out, fl.records)
	return out
}

// Len returns the number of records
func (fl *FeedbackLog) Len() int {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return len(fl.records)
}

// Reset drops all records
func (fl *FeedbackLog) Reset() {
	fl.mu.Lock()
	fl.records = nil
	fl.mu.Unlock()
}

// MarshalJSON encodes the log as [{"C4":0.5},{"E4":0.3},...]
func (fl *FeedbackLog) MarshalJSON() ([]byte, error) {
	records := fl.Records()
	if records == nil {
		records = []FeedbackRecord{}
	}
	return json.Marshal(records)
}

// Summary returns per-note statistics in order of first appearance
func (fl *FeedbackLog) Summary() []NoteSummary {
	records := fl.Records()

	order := make([]string, 0)
	durations := make(map[string][]float64)
	correct := make(map[string]int)

	for _, r := range records {
		if _, seen := durations[r.Note]; !seen {
			order = append(order, r.Note)
		}
		durations[r.Note] = append(durations[r.Note], r.Duration)
		if r.Correct() {
			correct[r.Note]++
		}
	}

	summary := make([]NoteSummary, 0, len(order))
	for _, note := range order {
		d := durations[note]
		mean, std := stat.MeanStdDev(d, nil)
		if math.IsNaN(std) {
			std = 0
		}

		total := 0.0
		for _, v := range d {
			total += v
		}

		summary = append(summary, NoteSummary{
			Note:         note,
			Count:        len(d),
			Correct:      correct[note],
			MeanDuration: mean,
			StdDuration:  std,
			Total:        total,
		})
	}

	return summary
}
