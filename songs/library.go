package songs

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/RyanBlaney/sonido-coach/trainer"
)

// Library is a set of songs keyed by name
type Library map[string]trainer.SongData

// ParseLibrary decodes a {"<name>": <song>, ...} document. Every entry must
// be a valid song; entries without a title take their key.
func ParseLibrary(b []byte) (Library, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse song library: %w", err)
	}

	lib := make(Library, len(raw))
	for name, entry := range raw {
		data, err := ParseJSON(entry)
		if err != nil {
			return nil, fmt.Errorf("song %q: %w", name, err)
		}
		if data.Title == "" {
			data.Title = name
		}
		lib[name] = data
	}
	return lib, nil
}

// LoadLibrary reads a song library file
func LoadLibrary(path string) (Library, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read song library: %w", err)
	}
	lib, err := ParseLibrary(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// Names returns the song names in sorted order
func (l Library) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the named song
func (l Library) Get(name string) (trainer.SongData, error) {
	data, ok := l[name]
	if !ok {
		return trainer.SongData{}, fmt.Errorf("%w: %q (have %v)", ErrSongNotFound, name, l.Names())
	}
	return data, nil
}
