package webhooks

import (
	"sync"

	"github.com/angelmondragon/pixmock-backend/pkg/enums"
)

// DeliveryLog is an append-only record of delivery attempts.
type DeliveryLog struct {
	mu      sync.RWMutex
	entries []DeliveryLogEntry
}

func NewDeliveryLog() *DeliveryLog {
	return &DeliveryLog{}
}

// Append adds entries as one contiguous block.
func (l *DeliveryLog) Append(entries ...DeliveryLogEntry) {
	if len(entries) == 0 {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entries...)
	l.mu.Unlock()
}

// List returns every entry in append order.
func (l *DeliveryLog) List() []DeliveryLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]DeliveryLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *DeliveryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// CountOutcome counts entries that ended with outcome.
func (l *DeliveryLog) CountOutcome(outcome enums.WebhookDeliveryOutcome) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, entry := range l.entries {
		if entry.Outcome == outcome {
			n++
		}
	}
	return n
}
