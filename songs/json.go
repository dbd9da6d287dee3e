// Package songs loads lesson songs from JSON song files, JSON song libraries
// and Standard MIDI Files.
package songs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-coach/trainer"
)

var (
	ErrSongNotFound = errors.New("song not found")
	ErrNoTracks     = errors.New("song has no notes or tracks")
)

// songFile accepts both the flat {title, notes} form and the MIDI-export form
// where notes live under tracks[].notes and the title under header.name
type songFile struct {
	trainer.SongData
	Header struct {
		Name string `json:"name"`
	} `json:"header"`
	Tracks []struct {
		Name  string            `json:"name"`
		Notes []trainer.RawNote `json:"notes"`
	} `json:"tracks"`
}

func (f songFile) songData() (trainer.SongData, error) {
	data := f.SongData
	if data.Title == "" {
		data.Title = f.Header.Name
	}
	if len(data.Notes) > 0 {
		return data, nil
	}
	for _, tr := range f.Tracks {
		if len(tr.Notes) > 0 {
			data.Notes = tr.Notes
			if data.Title == "" {
				data.Title = tr.Name
			}
			return data, nil
		}
	}
	return data, ErrNoTracks
}

// ParseJSON decodes one song and validates it
func ParseJSON(b []byte) (trainer.SongData, error) {
	var f songFile
	if err := json.Unmarshal(b, &f); err != nil {
		return trainer.SongData{}, fmt.Errorf("failed to parse song: %w", err)
	}
	data, err := f.songData()
	if err != nil {
		return trainer.SongData{}, err
	}
	if _, err := trainer.NormalizeSong(data); err != nil {
		return trainer.SongData{}, err
	}
	return data, nil
}

// LoadJSON reads a song file. Untitled songs are named after the file.
func LoadJSON(path string) (trainer.SongData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return trainer.SongData{}, fmt.Errorf("failed to read song file: %w", err)
	}
	data, err := ParseJSON(b)
	if err != nil {
		return trainer.SongData{}, fmt.Errorf("%s: %w", path, err)
	}
	if data.Title == "" {
		data.Title = baseName(path)
	}
	return data, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
