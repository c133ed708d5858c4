package server

import (
	"encoding/json"
	"sync"

	"github.com/njhostel/mysterynight/internal/session"
)

// sseMessage is one encoded event ready for the wire.
type sseMessage struct {
	Event string
	Data  []byte
}

// Broker is an in-process pub/sub for session events, keyed by session token.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan sseMessage]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan sseMessage]struct{}),
	}
}

// Subscribe returns a channel that receives events for the given session.
// The channel is closed when the session is dropped.
func (b *Broker) Subscribe(token string) chan sseMessage {
	ch := make(chan sseMessage, 16)
	b.mu.Lock()
	if b.subs[token] == nil {
		b.subs[token] = make(map[chan sseMessage]struct{})
	}
	b.subs[token][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the session's subscribers.
func (b *Broker) Unsubscribe(token string, ch chan sseMessage) {
	b.mu.Lock()
	delete(b.subs[token], ch)
	if len(b.subs[token]) == 0 {
		delete(b.subs, token)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given session. It never
// blocks; the session lock may be held by the caller.
func (b *Broker) Publish(token string, event session.Event) {
	var payload any = event.State
	if event.Type == session.EventChase {
		payload = event.Chase
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := sseMessage{Event: event.Type, Data: data}

	b.mu.RLock()
	for ch := range b.subs[token] {
		select {
		case ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Drop closes every subscriber of token.
func (b *Broker) Drop(token string) {
	b.mu.Lock()
	for ch := range b.subs[token] {
		close(ch)
	}
	delete(b.subs, token)
	b.mu.Unlock()
}
