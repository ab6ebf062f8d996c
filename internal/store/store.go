// Package store persists small text records under slash-separated keys such
// as "lessons/manifest". Each record lives in its own file named after the
// SHA-256 of its key; records larger than 1KB are zstd-compressed when that
// saves space.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("store: key not found")

const (
	// MimePlainText is the default MIME type for text records.
	MimePlainText = "text/plain"
	// MimeJSON marks records holding JSON documents.
	MimeJSON = "application/json"

	compressThreshold = 1024
	plainExt          = ".json"
	compressedExt     = ".json.zst"
)

// Record is a stored value with its metadata.
type Record struct {
	Key          string    `json:"key"`
	Path         string    `json:"path"`
	MimeType     string    `json:"mimeType"`
	LastModified time.Time `json:"lastModified"`
	Text         string    `json:"text"`
}

// Store is a file-backed key/value store. It is safe for concurrent use.
type Store struct {
	fs      afero.Fs
	dir     string
	now     func() time.Time
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for LastModified.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens the store rooted at dir on fsys, creating the directory if
// needed. A compressionLevel of 0 disables compression.
func New(fsys afero.Fs, dir string, compressionLevel int, opts ...Option) (*Store, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{fs: fsys, dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	// The decoder is always needed so records written with compression can
	// be read back after it is turned off.
	var err error
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if compressionLevel > 0 {
		s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	return s, nil
}

// Close releases the compression resources.
func (s *Store) Close() error {
	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			return err
		}
	}
	s.decoder.Close()
	return nil
}

// KeyToPath returns the parent path of key: "a/b/c" gives "a/b", and a key
// without a slash gives "".
func KeyToPath(key string) string {
	dir := path.Dir(key)
	if dir == "." {
		return ""
	}
	return dir
}

// GetText returns the text stored at key.
func (s *Store) GetText(key string) (string, error) {
	rec, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return rec.Text, nil
}

// GetTextIfModified returns the text at key only when it was modified after
// since. ok is false when the record is missing or older.
func (s *Store) GetTextIfModified(key string, since time.Time) (text string, ok bool, err error) {
	rec, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !rec.LastModified.After(since) {
		return "", false, nil
	}
	return rec.Text, true, nil
}

// LastModified returns when key was last written.
func (s *Store) LastModified(key string) (time.Time, error) {
	rec, err := s.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastModified, nil
}

// Get returns the full record for key.
func (s *Store) Get(key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(key)
}

// SetText stores text at key as plain text.
func (s *Store) SetText(key, text string) error {
	return s.Set(key, text, MimePlainText)
}

// Set stores text at key with the given MIME type, replacing any existing
// record.
func (s *Store) Set(key, text, mimeType string) error {
	if key == "" {
		return errors.New("store: empty key")
	}
	rec := Record{
		Key:          key,
		Path:         KeyToPath(key),
		MimeType:     mimeType,
		LastModified: s.now(),
		Text:         text,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	ext := plainExt
	if s.encoder != nil && len(data) > compressThreshold {
		compressed := s.encoder.EncodeAll(data, nil)
		if len(compressed) < len(data) {
			data = compressed
			ext = compressedExt
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.baseName(key)
	// A record may switch between compressed and plain as it changes size.
	for _, old := range []string{plainExt, compressedExt} {
		if old == ext {
			continue
		}
		if err := s.fs.Remove(base + old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale record: %w", err)
		}
	}
	if err := s.writeFile(base+ext, data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.baseName(key)
	for _, ext := range []string{plainExt, compressedExt} {
		if err := s.fs.Remove(base + ext); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (s *Store) Keys() ([]string, error) {
	return s.keysWhere(func(*Record) bool { return true })
}

// KeysAtPath returns the keys whose parent path is exactly p.
func (s *Store) KeysAtPath(p string) ([]string, error) {
	p = strings.TrimSuffix(p, "/")
	return s.keysWhere(func(r *Record) bool { return r.Path == p })
}

func (s *Store) keysWhere(match func(*Record) bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, plainExt) && !strings.HasSuffix(name, compressedExt) {
			continue
		}
		rec, err := s.readFile(filepath.Join(s.dir, name))
		if err != nil {
			// Skip unreadable records rather than failing the listing
			continue
		}
		if match(rec) {
			keys = append(keys, rec.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) read(key string) (*Record, error) {
	base := s.baseName(key)
	for _, ext := range []string{plainExt, compressedExt} {
		rec, err := s.readFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (s *Store) readFile(name string) (*Record, error) {
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(name, compressedExt) {
		data, err = s.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", filepath.Base(name), err)
		}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(name), err)
	}
	return &rec, nil
}

// writeFile writes via a temp file and rename so readers never see a
// partial record.
func (s *Store) writeFile(name string, data []byte) error {
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, name)
}

func (s *Store) baseName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:]))
}
