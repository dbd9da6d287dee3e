// Package companion serves the phone app: song upload, feedback download,
// progress and a live stream of trainer events.
package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/songs"
	"github.com/RyanBlaney/sonido-coach/trainer"
)

// Trainer is the part of the session the companion app talks to
type Trainer interface {
	LoadSong(data trainer.SongData) error
	Feedback() *trainer.FeedbackLog
	Status() trainer.SessionStatus
	OnEvent(listener trainer.EventListener)
}

// Config holds server settings
type Config struct {
	Address        string        `json:"address"`
	SendBuffer     int           `json:"send_buffer"`
	MaxConnections int           `json:"max_connections"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	MaxBodyBytes   int64         `json:"max_body_bytes"`
}

// DefaultConfig listens on the port the phone app expects
func DefaultConfig() Config {
	return Config{
		Address:        ":5000",
		SendBuffer:     64,
		MaxConnections: 8,
		WriteTimeout:   5 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server is the companion HTTP and WebSocket server
type Server struct {
	trainer Trainer
	config  Config

	connsMu sync.Mutex
	conns   map[*wsConn]struct{}
	dropped atomic.Int64

	serverMu sync.Mutex
	server   *http.Server

	logger logging.Logger
}

// NewServer creates a server and subscribes it to trainer events
func NewServer(t Trainer, config Config) *Server {
	s := &Server{
		trainer: t,
		config:  config,
		conns:   make(map[*wsConn]struct{}),
		logger: logging.WithFields(logging.Fields{
			"component": "companion",
		}),
	}
	t.OnEvent(s.broadcastEvent)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /receive_json", s.handleReceiveSong)
	mux.HandleFunc("GET /send_json", s.handleSendFeedback)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	return mux
}

// Serve listens until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.serverMu.Lock()
	if s.server != nil {
		s.serverMu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.server = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Companion server listening", logging.Fields{"address": s.config.Address})
		errCh <- server.ListenAndServe()
	}()

	defer s.closeAllConnections("server shutting down")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("companion server: %w", err)
		}
		return nil
	}
}

// Dropped returns the number of events not delivered to slow clients
func (s *Server) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Server) handleReceiveSong(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: err.Error()})
		return
	}

	data, err := songs.ParseJSON(body)
	if err == nil {
		err = s.trainer.LoadSong(data)
	}
	if err != nil {
		s.logger.Warn("Rejected song upload", logging.Fields{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: err.Error()})
		return
	}

	s.logger.Info("Song received", logging.Fields{
		"title": data.Title,
		"key":   data.Key,
		"tempo": data.Tempo,
		"notes": len(data.Notes),
	})
	writeJSON(w, http.StatusOK, response{Status: "success", Message: "Data Received"})
}

func (s *Server) handleSendFeedback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.trainer.Feedback())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.trainer.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxConnections > 0 && s.ConnectionCount() >= s.config.MaxConnections {
		http.Error(w, "Too Many Connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket accept failed", logging.Fields{"error": err.Error()})
		return
	}

	wc, err := s.addConn(conn)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer s.dropConn(wc)

	s.logger.Info("Event stream opened", logging.Fields{"remote": r.RemoteAddr})

	// the app never sends; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(r.Context())
	if err := s.writeLoop(ctx, wc); err != nil && !isClosed(err) {
		s.logger.Warn("Event stream write failed", logging.Fields{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
	}
	wc.close(websocket.StatusNormalClosure, "stream closed")
	s.logger.Info("Event stream closed", logging.Fields{"remote": r.RemoteAddr})
}

// broadcastEvent runs on the analysis goroutine, so it only encodes and enqueues
func (s *Server) broadcastEvent(e trainer.Event) {
	conns := s.snapshotConns()
	if len(conns) == 0 {
		return
	}
	msg, err := json.Marshal(e)
	if err != nil {
		return
	}
	for _, c := range conns {
		if !c.enqueue(msg) {
			s.dropped.Add(1)
		}
	}
}

func isClosed(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
