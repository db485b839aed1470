package quota

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Counter tracks how many tutor turns a key has used in the current day.
type Counter interface {
	Count(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string) (int, error)
	// Reset forgets today's count of key.
	Reset(ctx context.Context, key string) error
}

// untilMidnight returns the time left in the UTC day containing now.
func untilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}

func dayStamp(now time.Time) string {
	return now.UTC().Format("20060102")
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type memoryEntry struct {
	day   string
	count int
}

// MemoryCounter is a process-local Counter; counts roll over at UTC midnight.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	// day 是最近一次清理过期条目的日期
	day string
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Count(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[normalizeKey(key)]
	if !ok || entry.day != dayStamp(c.now()) {
		return 0, nil
	}
	return entry.count, nil
}

func (c *MemoryCounter) Increment(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key = normalizeKey(key)
	day := dayStamp(c.now())
	if day != c.day {
		c.evictLocked(day)
	}
	entry := c.entries[key]
	if entry.day != day {
		entry = memoryEntry{day: day}
	}
	entry.count++
	c.entries[key] = entry
	return entry.count, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeKey(key))
	return nil
}

// evictLocked drops entries from days other than day.
func (c *MemoryCounter) evictLocked(day string) {
	for key, entry := range c.entries {
		if entry.day != day {
			delete(c.entries, key)
		}
	}
	c.day = day
}
