package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Editors tend to write a file in several steps; wait for them to settle.
const reloadDelay = 250 * time.Millisecond

// watchLesson calls onChange whenever a file next to the lesson descriptor
// at path changes. The lesson's timing marks and SSML live in the same
// directory, so edits to any of them trigger a reload.
func watchLesson(ctx context.Context, path string, onChange func()) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to watch lesson: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	log.Debug("Watching lesson", "dir", dir)

	go func() {
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("Lesson file changed", "file", event.Name, "op", event.Op)
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDelay, onChange)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("Watching lesson", "error", err)
			}
		}
	}()
	return w, nil
}
