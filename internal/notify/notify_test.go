package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	if err := w.Notify(EventRelationsUpdated, "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".event" {
		t.Errorf("expected .event extension, got %s", entries[0].Name())
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	tests := []struct {
		eventType string
		subject   string
	}{
		{EventCacheCleared, ""},
		{EventRelationsUpdated, "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			dir := t.TempDir()
			received := make(chan Event, 1)

			watcher := NewEventWatcher(dir, func(e Event) { received <- e }, nil)
			if err := watcher.Start(); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer watcher.Stop()

			// Give fsnotify a moment to register
			time.Sleep(50 * time.Millisecond)

			if err := NewEventWriter(dir).Notify(tt.eventType, tt.subject); err != nil {
				t.Fatalf("Notify failed: %v", err)
			}

			select {
			case e := <-received:
				if e.Type != tt.eventType {
					t.Errorf("expected event type %s, got %s", tt.eventType, e.Type)
				}
				if e.SubjectUUID != tt.subject {
					t.Errorf("expected subject %q, got %q", tt.subject, e.SubjectUUID)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("timeout waiting for event")
			}
		})
	}
}

func TestEventWatcherDiscardsStaleEvents(t *testing.T) {
	dir := t.TempDir()

	// Write events BEFORE starting watcher
	writer := NewEventWriter(dir)
	_ = writer.Notify(EventCacheCleared, "")
	_ = writer.Notify(EventCacheCleared, "")

	received := make(chan Event, 10)
	watcher := NewEventWatcher(dir, func(e Event) { received <- e }, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if len(received) != 0 {
		t.Fatalf("expected stale events to be dropped, got %d", len(received))
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "events"))
	if len(entries) != 0 {
		t.Errorf("expected events directory to be empty, got %d files", len(entries))
	}
}

func TestSanitizeName(t *testing.T) {
	got := sanitizeName("cache:cleared/now")
	if got != "cache_cleared_now" {
		t.Errorf("expected cache_cleared_now, got %s", got)
	}
}
