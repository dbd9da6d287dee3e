package companion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/RyanBlaney/sonido-coach/trainer"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

func newTestServer(t *testing.T) (*trainer.Session, *Server, *httptest.Server) {
	t.Helper()
	session, err := trainer.NewSession(config.DefaultSessionConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	srv := NewServer(session, DefaultConfig())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return session, srv, ts
}

func postSong(t *testing.T, url, body string) (int, response) {
	t.Helper()
	resp, err := http.Post(url+"/receive_json", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestServer_ReceiveSong(t *testing.T) {
	session, _, ts := newTestServer(t)

	code, resp := postSong(t, ts.URL, `{"title":"Mary","key":"C","tempo":100,"notes":[{"note":"E4","duration":480},{"note":"D4","duration":480}]}`)
	if code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("unexpected response %d %+v", code, resp)
	}
	status := session.Status()
	if status.Title != "Mary" || status.Length != 2 || status.Expected != "E4" {
		t.Fatalf("song not loaded: %+v", status)
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"notes":`, "failed to parse song"},
		{"missing duration", `{"title":"x","notes":[{"note":"C4"}]}`, "duration"},
		{"empty", `{"title":"x","notes":[]}`, "no notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := postSong(t, ts.URL, tt.body)
			if code != http.StatusBadRequest || resp.Status != "error" || !strings.Contains(resp.Message, tt.want) {
				t.Fatalf("unexpected response %d %+v", code, resp)
			}
		})
	}

	if session.Status().Title != "Mary" {
		t.Fatalf("rejected uploads must keep the loaded song")
	}
}

func TestServer_SendFeedbackAndStatus(t *testing.T) {
	session, _, ts := newTestServer(t)
	if err := session.LoadSong(trainer.SongData{Title: "t", Notes: []trainer.RawNote{trainer.NewRawNote("C4", 0.5)}}); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}
	session.Feedback().Append(trainer.FeedbackRecord{Note: "C4", Duration: 0.5, Expected: "C4"})

	resp, err := http.Get(ts.URL + "/send_json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var feedback []map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&feedback); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if len(feedback) != 1 || feedback[0]["C4"] != 0.5 {
		t.Fatalf("unexpected feedback %v", feedback)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["title"] != "t" || status["state"] != "starting" || status["finished"] != false {
		t.Fatalf("unexpected status %v", status)
	}

	resp, err = http.Get(ts.URL + "/receive_json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestServer_StreamsEvents(t *testing.T) {
	session, srv, ts := newTestServer(t)
	if err := session.LoadSong(trainer.SongData{Title: "t", Notes: []trainer.RawNote{trainer.NewRawNote("C4", 0.5)}}); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	for srv.ConnectionCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for the stream to register")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := session.ProcessBatch(make([]float64, 12000)); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e trainer.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		t.Fatalf("decode event %s: %v", payload, err)
	}
	if e.Type != trainer.EventStateChange || e.From != trainer.StateStarting || e.To != trainer.StateSilentStart {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestServer_DropsForSlowClients(t *testing.T) {
	session, err := trainer.NewSession(config.DefaultSessionConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	srv := NewServer(session, cfg)

	// a registered connection nobody drains
	wc := newWSConn(nil, 1)
	srv.conns[wc] = struct{}{}

	srv.broadcastEvent(trainer.Event{Type: trainer.EventFeedback})
	srv.broadcastEvent(trainer.Event{Type: trainer.EventFeedback})
	srv.broadcastEvent(trainer.Event{Type: trainer.EventFeedback})

	if srv.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", srv.Dropped())
	}
	if len(wc.send) != 1 {
		t.Fatalf("expected one queued event, got %d", len(wc.send))
	}
}
