package trainer

import (
	"fmt"
	"sync"
	"time"
)

type ledCall struct {
	Op       string
	LED      int
	NoteType NoteType
	On       bool
}

func (c ledCall) String() string {
	return fmt.Sprintf("%s(%d,%s,%v)", c.Op, c.LED, c.NoteType, c.On)
}

type fakeLEDs struct {
	mu    sync.Mutex
	calls []ledCall
}

func (f *fakeLEDs) TurnOnLED(led int, nt NoteType) {
	f.add(ledCall{Op: "on", LED: led, NoteType: nt})
}

func (f *fakeLEDs) TurnOnLEDSolo(led int, on bool) {
	f.add(ledCall{Op: "solo", LED: led, On: on})
}

func (f *fakeLEDs) StartSequence(led int) {
	f.add(ledCall{Op: "start", LED: led})
}

func (f *fakeLEDs) EndSequence() {
	f.add(ledCall{Op: "end"})
}

func (f *fakeLEDs) add(c ledCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeLEDs) Calls() []ledCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeLEDs) has(c ledCall) bool {
	for _, got := range f.Calls() {
		if got == c {
			return true
		}
	}
	return false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func songData(title string, notes ...any) SongData {
	data := SongData{Title: title}
	for i := 0; i+1 < len(notes); i += 2 {
		data.Notes = append(data.Notes, NewRawNote(notes[i].(string), notes[i+1].(float64)))
	}
	return data
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
