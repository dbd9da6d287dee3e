package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-coach/led"
	"github.com/RyanBlaney/sonido-coach/trainer"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"song", []string{"-song", "mary.json"}, false},
		{"library without name", []string{"-library", "songs.json"}, true},
		{"wav and simulate", []string{"-wav", "a.wav", "-simulate"}, true},
		{"unknown flag", []string{"-volume", "11"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if err == nil && opts.track != -1 {
				t.Fatalf("default track = %d, want -1", opts.track)
			}
		})
	}
}

func TestLoadSong(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "mary.json")
	if err := os.WriteFile(song, []byte(`{"title":"Mary","notes":[{"note":"E4","duration":0.5}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := filepath.Join(dir, "lib.json")
	if err := os.WriteFile(lib, []byte(`{"ode":{"notes":[{"note":"E4","duration":1}]}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := loadSong(options{}); ok || err != nil {
		t.Fatalf("expected no song, got ok=%v err=%v", ok, err)
	}
	data, ok, err := loadSong(options{songPath: song})
	if !ok || err != nil || data.Title != "Mary" {
		t.Fatalf("unexpected song %+v ok=%v err=%v", data, ok, err)
	}
	data, ok, err = loadSong(options{library: lib, name: "ode"})
	if !ok || err != nil || data.Title != "ode" {
		t.Fatalf("unexpected library song %+v ok=%v err=%v", data, ok, err)
	}
	if _, _, err := loadSong(options{library: lib, name: "missing"}); err == nil {
		t.Fatalf("expected error for a missing library entry")
	}
}

func TestOpenSource_Simulate(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	song := trainer.SongData{Title: "t", Notes: []trainer.RawNote{trainer.NewRawNote("A3", 0.5)}}

	src, err := openSource(options{simulate: true}, &cfg, song)
	if err != nil {
		t.Fatalf("openSource: %v", err)
	}
	defer src.Close()
	if src.SampleRate() != cfg.SampleRate {
		t.Fatalf("source rate %d, config rate %d", src.SampleRate(), cfg.SampleRate)
	}
}

func TestLEDOutput_DryRun(t *testing.T) {
	out, err := openLEDs(options{})
	if err != nil {
		t.Fatalf("openLEDs: %v", err)
	}
	if out.async != nil || out.port != nil {
		t.Fatalf("dry run must not open a port")
	}
	out.controller.StartSequence(13)
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := openLEDs(options{serialPort: "/dev/does-not-exist", baud: 115200}); err == nil {
		t.Fatalf("expected error for a missing serial device")
	}
	var _ trainer.LEDController = (*led.Strip)(nil)
}
