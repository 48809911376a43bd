package ws

import "sync"

// Subscriber is a deploy progress listener. Send must be safe to call from
// any goroutine; a Send error means the subscriber is dead and will be
// dropped from its stream.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans deploy progress events out to subscribers, one stream per
// project. Streams appear on first Register and vanish when their last
// subscriber leaves.
type Hub struct {
	mu      sync.Mutex
	streams map[string]map[Subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[string]map[Subscriber]struct{})}
}

// Register attaches a subscriber to a project's stream.
func (h *Hub) Register(projectID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stream, ok := h.streams[projectID]
	if !ok {
		stream = make(map[Subscriber]struct{})
		h.streams[projectID] = stream
	}
	stream[sub] = struct{}{}
}

// Unregister detaches a subscriber. Unknown subscribers are ignored.
func (h *Hub) Unregister(projectID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stream, ok := h.streams[projectID]
	if !ok {
		return
	}
	delete(stream, sub)
	if len(stream) == 0 {
		delete(h.streams, projectID)
	}
}

// Broadcast delivers payload to every subscriber of the project's stream.
// Subscribers whose Send fails are closed and dropped.
func (h *Hub) Broadcast(projectID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stream, ok := h.streams[projectID]
	if !ok {
		return
	}
	for sub := range stream {
		if err := sub.Send(payload); err != nil {
			sub.Close()
			delete(stream, sub)
		}
	}
	if len(stream) == 0 {
		delete(h.streams, projectID)
	}
}
