package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// List returns the snapshots in dir, newest first. The timestamp comes from
// the file name; files not named by FileName are ignored. A missing
// directory holds no snapshots.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read %s: %w", dir, err)
	}

	var snapshots []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stamp, ok := strings.CutPrefix(name, "devtools-")
		if !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, ".db")
		if !ok {
			continue
		}
		ts, err := time.Parse(timeLayout, stamp)
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue // Skip files we can't stat
		}
		snapshots = append(snapshots, Info{
			Path:      filepath.Join(dir, name),
			Timestamp: ts,
			Size:      fi.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// Prune keeps the newest keep snapshots in dir and removes the rest. It
// returns the removed paths. keep < 1 keeps one.
func Prune(dir string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	snapshots, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	var removed []string
	var lastErr error
	for _, s := range snapshots[keep:] {
		if err := os.Remove(s.Path); err != nil {
			lastErr = err
			// Continue deleting other snapshots even if one fails
			continue
		}
		removed = append(removed, s.Path)
	}
	if lastErr != nil {
		return removed, fmt.Errorf("backup: failed to delete some snapshots: %w", lastErr)
	}
	return removed, nil
}
