package service

import (
	"encoding/json"
	"strings"
	"sync"
)

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// sanitizeMetadata drops values that cannot be serialized to JSON so a bad
// metadata entry never blocks the audit write.
func sanitizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}

	cleaned := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		if _, err := json.Marshal(value); err != nil {
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// keyedMutex serialises work per string key. The assessment orchestrator
// uses it so two concurrent workers cannot both miss the existing-assessment
// check for the same (solution, model) pair.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyedMutexEntry)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
