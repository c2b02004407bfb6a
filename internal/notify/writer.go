// Package notify passes cache events from the CLI to a running inspector
// backend through event files in the shared data directory.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event types.
const (
	// EventCacheCleared means every cached analysis was removed.
	EventCacheCleared = "cache_cleared"

	// EventRelationsUpdated means a fresh analysis of SubjectUUID was cached.
	EventRelationsUpdated = "relations_updated"
)

// Event is the payload written to an event file.
type Event struct {
	Type        string `json:"type"`
	SubjectUUID string `json:"subject_uuid,omitempty"`
	Time        int64  `json:"time"`
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file. The file appears atomically so a watcher
// never reads a partial event.
func (w *EventWriter) Notify(eventType, subjectUUID string) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{
		Type:        eventType,
		SubjectUUID: subjectUUID,
		Time:        time.Now().UnixNano(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	name := fmt.Sprintf("%d-%s", evt.Time, sanitizeName(eventType))
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+".event")); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// sanitizeName replaces characters unsafe for filenames.
func sanitizeName(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '/' || c == ':' || c == '\\' {
			out[i] = '_'
		}
	}
	return string(out)
}
