package core

import "sync"

// dedupWindow remembers the most recent event keys. The platform redelivers
// webhook callbacks it did not see acknowledged, and a reconnect can replay
// events already handled on the previous connection.
type dedupWindow struct {
	mu   sync.Mutex
	size int
	ring []string
	next int
	keys map[string]struct{}
}

func newDedupWindow(size int) *dedupWindow {
	if size <= 0 {
		size = 1
	}
	return &dedupWindow{
		size: size,
		ring: make([]string, 0, size),
		keys: make(map[string]struct{}, size),
	}
}

// Seen reports whether key was recorded before, and records it if not.
// Empty keys are never considered duplicates.
func (d *dedupWindow) Seen(key string) bool {
	if key == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return true
	}

	if len(d.ring) < d.size {
		d.ring = append(d.ring, key)
	} else {
		delete(d.keys, d.ring[d.next])
		d.ring[d.next] = key
		d.next = (d.next + 1) % d.size
	}
	d.keys[key] = struct{}{}
	return false
}

func dedupKey(botID, eventID string) string {
	if eventID == "" {
		return ""
	}
	return botID + "/" + eventID
}
