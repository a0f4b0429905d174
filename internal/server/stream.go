package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"amneziawg-webui/internal/repository"
)

const streamHeartbeat = 25 * time.Second

// streamMessage is one server-sent event. ID carries the revision id so a
// reconnecting editor can tell which saves it has already seen.
type streamMessage struct {
	ID    string
	Event string
	Data  []byte
}

// handleStream tells connected editors about saves made elsewhere, so they
// can reload before overwriting a newer document.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := make(chan streamMessage, 8)
	s.addWatcher(ch)
	defer s.removeWatcher(ch)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	fmt.Fprint(w, "retry: 5000\n\n")
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeStreamMessage(w, msg)
			flusher.Flush()
		}
	}
}

func writeStreamMessage(w http.ResponseWriter, msg streamMessage) {
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

func (s *Server) addWatcher(ch chan streamMessage) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	if s.streamsClosed {
		close(ch)
		return
	}
	s.watchers[ch] = struct{}{}
}

// CloseStreams ends every open event stream and refuses new ones. Register
// it with http.Server.RegisterOnShutdown; Shutdown alone leaves streams open.
func (s *Server) CloseStreams() {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	s.streamsClosed = true
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
}

func (s *Server) removeWatcher(ch chan streamMessage) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	if _, ok := s.watchers[ch]; ok {
		delete(s.watchers, ch)
		close(ch)
	}
}

func (s *Server) watcherCount() int {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	return len(s.watchers)
}

// publishRevision announces a stored revision as a "saved" event.
func (s *Server) publishRevision(rev repository.Revision) {
	data, err := json.Marshal(map[string]any{
		"id":       rev.ID,
		"section":  rev.Section,
		"savedAt":  rev.SavedAt,
		"warnings": len(rev.Warnings),
	})
	if err != nil {
		return
	}
	s.broadcast(streamMessage{ID: rev.ID, Event: "saved", Data: data})
}

// broadcast never blocks; a listener with a full buffer misses the event.
// Sending under the lock keeps removeWatcher from closing a channel mid-send.
func (s *Server) broadcast(msg streamMessage) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- msg:
		default:
		}
	}
}
