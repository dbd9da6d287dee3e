package songs

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-coach/algorithms/chroma"
	"github.com/RyanBlaney/sonido-coach/trainer"
)

// DefaultTempo applies when a file carries no tempo event
const DefaultTempo = 120.0

var (
	ErrUnsupportedTimeFormat = errors.New("only metric (ticks per quarter) MIDI files are supported")
	ErrTrackOutOfRange       = errors.New("track out of range")
)

// LoadMIDI converts one track of a Standard MIDI File to a song.
// A negative track selects the first track that has notes.
func LoadMIDI(path string, track int) (trainer.SongData, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return trainer.SongData{}, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	data, err := FromSMF(s, track)
	if err != nil {
		return trainer.SongData{}, fmt.Errorf("%s: %w", path, err)
	}
	if data.Title == "" {
		data.Title = baseName(path)
	}
	return data, nil
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// tempoMap converts absolute ticks to seconds across tempo changes
type tempoMap struct {
	resolution float64
	changes    []tempoChange
}

func (m tempoMap) seconds(tick uint64) float64 {
	secs := 0.0
	last := uint64(0)
	bpm := DefaultTempo
	for _, c := range m.changes {
		if c.tick >= tick {
			break
		}
		secs += float64(c.tick-last) * 60 / (bpm * m.resolution)
		last, bpm = c.tick, c.bpm
	}
	return secs + float64(tick-last)*60/(bpm*m.resolution)
}

type midiNote struct {
	key        uint8
	start, end uint64
}

// FromSMF converts note-on/note-off pairs of one track to a song in seconds.
// Tempo events of every track apply. Overlapping notes are kept in start order.
func FromSMF(s *smf.SMF, track int) (trainer.SongData, error) {
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return trainer.SongData{}, ErrUnsupportedTimeFormat
	}
	if track >= len(s.Tracks) {
		return trainer.SongData{}, fmt.Errorf("%w: %d of %d", ErrTrackOutOfRange, track, len(s.Tracks))
	}

	tempos := tempoMap{resolution: float64(uint16(mt))}
	var title string
	perTrack := make([][]midiNote, len(s.Tracks))

	for i, tr := range s.Tracks {
		var (
			tick uint64
			open = map[uint8][]uint64{}
		)
		for _, ev := range tr {
			tick += uint64(ev.Delta)

			var (
				bpm               float64
				name              string
				ch, key, velocity uint8
			)
			msg := midi.Message(ev.Message)
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				tempos.changes = append(tempos.changes, tempoChange{tick: tick, bpm: bpm})
			case ev.Message.GetMetaTrackName(&name):
				if title == "" && (i == track || track < 0) {
					title = name
				}
			case msg.GetNoteStart(&ch, &key, &velocity):
				open[key] = append(open[key], tick)
			case msg.GetNoteEnd(&ch, &key):
				starts := open[key]
				if len(starts) == 0 {
					continue
				}
				perTrack[i] = append(perTrack[i], midiNote{key: key, start: starts[0], end: tick})
				open[key] = starts[1:]
			}
		}
	}

	slices.SortStableFunc(tempos.changes, func(a, b tempoChange) int {
		return cmp.Compare(a.tick, b.tick)
	})

	if track < 0 {
		track = slices.IndexFunc(perTrack, func(n []midiNote) bool { return len(n) > 0 })
		if track < 0 {
			return trainer.SongData{}, ErrNoTracks
		}
	}
	notes := perTrack[track]
	if len(notes) == 0 {
		return trainer.SongData{}, fmt.Errorf("%w: track %d", ErrNoTracks, track)
	}
	slices.SortStableFunc(notes, func(a, b midiNote) int { return cmp.Compare(a.start, b.start) })

	data := trainer.SongData{
		Title:        title,
		Tempo:        DefaultTempo,
		DurationUnit: trainer.UnitSeconds,
	}
	if len(tempos.changes) > 0 {
		data.Tempo = tempos.changes[0].bpm
	}
	for _, n := range notes {
		d := tempos.seconds(n.end) - tempos.seconds(n.start)
		if d <= 0 {
			continue
		}
		data.Notes = append(data.Notes, trainer.NewRawNote(chroma.MIDINoteName(int(n.key)), d))
	}
	return data, nil
}
