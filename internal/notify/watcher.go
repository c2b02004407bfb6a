package notify

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventWatcher watches the events directory and dispatches callbacks.
type EventWatcher struct {
	dir      string
	callback func(Event)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewEventWatcher creates a watcher for {dataPath}/events/.
func NewEventWatcher(dataPath string, callback func(Event), logger *slog.Logger) *EventWatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventWatcher{
		dir:      filepath.Join(dataPath, "events"),
		callback: callback,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Events left over from before the start are
// discarded; they describe cache changes the store already reflects.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(ew.dir); err != nil {
		_ = w.Close()
		return err
	}
	ew.watcher = w
	ew.discardExisting()

	go ew.loop()
	ew.logger.Info("watching for cache events", "dir", ew.dir)
	return nil
}

// Stop shuts down the watcher.
func (ew *EventWatcher) Stop() {
	if ew.watcher == nil {
		return
	}
	_ = ew.watcher.Close()
	<-ew.done
}

func (ew *EventWatcher) loop() {
	defer close(ew.done)
	for {
		select {
		case evt, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".event") {
				ew.processFile(evt.Name)
			}
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			ew.logger.Warn("event watcher error", "error", err)
		}
	}
}

func (ew *EventWatcher) discardExisting() {
	entries, err := os.ReadDir(ew.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".event") {
			_ = os.Remove(filepath.Join(ew.dir, entry.Name()))
		}
	}
}

func (ew *EventWatcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}
	_ = os.Remove(path)

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		ew.logger.Warn("invalid event file", "file", filepath.Base(path), "error", err)
		return
	}
	if event.Type != "" && ew.callback != nil {
		ew.callback(event)
	}
}
