package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// EventsStreamHandler handles GET /v1/events/stream (SSE)
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(TopicDashboard)
	defer s.Broker.Unsubscribe(TopicDashboard, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			fmt.Fprintf(w, "id: %s\n", evt.ID)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventsWSHandler handles GET /v1/events/ws. After connection_init the
// client receives every dashboard event as a "next" message until it sends
// "complete" or disconnects.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla connections allow one concurrent writer
	out := make(chan wsMessage, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case msg := <-out:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
					return
				}
			}
		}
	}()
	send := func(m wsMessage) {
		select {
		case out <- m:
		case <-done:
		}
	}

	var ch chan Event
	unsubscribe := func() {
		if ch != nil {
			s.Broker.Unsubscribe(TopicDashboard, ch)
			ch = nil
		}
	}
	defer unsubscribe()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			// subscribe before the ack so no event after it is missed
			if ch == nil {
				ch = s.Broker.Subscribe(TopicDashboard)
				go func(c chan Event) {
					for evt := range c {
						payload, _ := json.Marshal(evt)
						send(wsMessage{Type: "next", Payload: payload})
					}
				}(ch)
			}
			send(wsMessage{Type: "connection_ack"})
		case "ping":
			send(wsMessage{Type: "pong"})
		case "complete":
			unsubscribe()
			send(wsMessage{Type: "complete"})
		}
	}
}
