package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/erikh2000/comprendo-player/internal/fetch"
	"github.com/erikh2000/comprendo-player/internal/store"
)

// Fetcher retrieves the remote manifest.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Store persists the cached manifest and the current lesson.
type Store interface {
	GetText(key string) (string, error)
	Set(key, text, mimeType string) error
	SetText(key, text string) error
	LastModified(key string) (time.Time, error)
}

// Syncer compares the cached manifest with the remote one and persists the
// remote copy only when it differs.
type Syncer struct {
	url     string
	fetcher Fetcher
	store   Store
	logger  *log.Logger

	group      singleflight.Group
	refreshing atomic.Bool
}

// NewSyncer creates a syncer for the manifest at url.
func NewSyncer(url string, f Fetcher, s Store, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.Default()
	}
	return &Syncer{url: url, fetcher: f, store: s, logger: logger}
}

// Cached returns the stored manifest, or an empty one if none is stored.
func (s *Syncer) Cached() (Manifest, error) {
	text, err := s.store.GetText(Key)
	if errors.Is(err, store.ErrNotFound) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read cached manifest: %w", err)
	}
	return Parse([]byte(text))
}

// Age returns how long ago the cached manifest was written.
func (s *Syncer) Age(now time.Time) (time.Duration, error) {
	mod, err := s.store.LastModified(Key)
	if err != nil {
		return 0, err
	}
	return now.Sub(mod), nil
}

// Sync fetches the remote manifest and returns the newest known copy.
// A failed or missing remote leaves the cached copy in place. changed
// reports whether the cache was rewritten. Concurrent calls share one
// fetch.
func (s *Syncer) Sync(ctx context.Context) (m Manifest, changed bool, err error) {
	type result struct {
		m       Manifest
		changed bool
	}
	v, err, _ := s.group.Do(Key, func() (any, error) {
		m, changed, err := s.sync(ctx)
		return result{m, changed}, err
	})
	if err != nil {
		return Manifest{}, false, err
	}
	r := v.(result)
	return r.m, r.changed, nil
}

func (s *Syncer) sync(ctx context.Context) (Manifest, bool, error) {
	cached, err := s.Cached()
	if err != nil {
		// A corrupt cache is replaced by whatever the remote has.
		s.logger.Warn("Ignoring cached manifest", "error", err)
		cached = Manifest{}
	}

	data, err := s.fetcher.Get(ctx, s.url)
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		s.logger.Debug("No remote manifest", "url", s.url)
		return cached, false, nil
	case err != nil:
		s.logger.Warn("Manifest fetch failed, keeping cached copy", "url", s.url, "error", err)
		return cached, false, nil
	}

	remote, err := Parse(data)
	if err != nil {
		s.logger.Warn("Remote manifest unreadable, keeping cached copy", "url", s.url, "error", err)
		return cached, false, nil
	}
	if remote.Equal(cached) {
		return cached, false, nil
	}

	text, err := json.Marshal(remote)
	if err != nil {
		return cached, false, err
	}
	if err := s.store.Set(Key, string(text), store.MimeJSON); err != nil {
		return cached, false, fmt.Errorf("save manifest: %w", err)
	}
	s.logger.Info("Lesson manifest updated", "lessons", len(remote.Lessons))
	return remote, true, nil
}

// Refresh runs one Sync unless another refresh is still in flight, in which
// case it returns immediately with ran false.
func (s *Syncer) Refresh(ctx context.Context, onChange func(Manifest)) (ran bool, err error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.logger.Debug("Manifest refresh already in flight, skipping")
		return false, nil
	}
	defer s.refreshing.Store(false)

	m, changed, err := s.Sync(ctx)
	if err != nil {
		return true, err
	}
	if changed && onChange != nil {
		onChange(m)
	}
	return true, nil
}

// Run refreshes the manifest every interval until ctx is done. Errors are
// logged and the next tick retries.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, onChange func(Manifest)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Ticks that land while a refresh is in flight are skipped.
			go func() {
				if _, err := s.Refresh(ctx, onChange); err != nil {
					s.logger.Error("Manifest refresh failed", "error", err)
				}
			}()
		}
	}
}

// CurrentLessonURL returns the lesson the user last picked, or "" if none.
func CurrentLessonURL(s Store) (string, error) {
	url, err := s.GetText(CurrentLessonKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return url, err
}

// SetCurrentLessonURL remembers the lesson the user picked.
func SetCurrentLessonURL(s Store, url string) error {
	return s.SetText(CurrentLessonKey, url)
}
