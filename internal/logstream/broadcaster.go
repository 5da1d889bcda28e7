// ABOUTME: In-memory fan-out of log lines to subscribers
// ABOUTME: Non-blocking publish; full subscriber buffers drop lines and count them

package logstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 256

// Line is one rendered log record.
type Line struct {
	Time  time.Time
	Level slog.Level
	Text  string
}

// String formats the line as "RFC3339 LEVEL text".
func (l Line) String() string {
	return fmt.Sprintf("%s %-5s %s", l.Time.Format(time.RFC3339), l.Level.String(), l.Text)
}

// Broadcaster fans log lines out to subscribers. It never logs itself,
// since its own records would be published back to it.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Line
	closed      bool
	dropped     atomic.Int64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan Line)}
}

// Subscribe registers a subscriber and returns its channel and ID. The
// subscription is removed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Line, string) {
	subID := uuid.New().String()
	ch := make(chan Line, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends line to every subscriber without blocking.
func (b *Broadcaster) Publish(line Line) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- line:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many lines were dropped for slow subscribers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)
}

// Close closes all subscriber channels. Later subscriptions get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true
}

// Pipe writes every line from a new subscription to w until ctx is done or
// the broadcaster closes.
func (b *Broadcaster) Pipe(ctx context.Context, w io.Writer) error {
	lines, _ := b.Subscribe(ctx)
	for line := range lines {
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return fmt.Errorf("writing log line: %w", err)
		}
	}
	return nil
}
