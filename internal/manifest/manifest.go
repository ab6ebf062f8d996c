// Package manifest keeps the list of available lessons in sync with the
// remote lesson manifest, caching it in the local store.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Store keys.
const (
	Key              = "lessons/manifest"
	CurrentLessonKey = "current/lessonUrl"
)

// Entry is one available lesson.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Manifest lists the available lessons in display order.
type Manifest struct {
	Lessons []Entry `json:"lessons"`
}

// Parse decodes a manifest document.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Equal reports whether both manifests list the same lessons in the same
// order.
func (m Manifest) Equal(other Manifest) bool {
	if len(m.Lessons) != len(other.Lessons) {
		return false
	}
	for i := range m.Lessons {
		if m.Lessons[i].Name != other.Lessons[i].Name || m.Lessons[i].URL != other.Lessons[i].URL {
			return false
		}
	}
	return true
}

// Names returns the lesson names.
func (m Manifest) Names() []string {
	names := make([]string, len(m.Lessons))
	for i, e := range m.Lessons {
		names[i] = e.Name
	}
	return names
}

// Search returns lessons whose name fuzzy-matches query, best match first.
// An exact case-insensitive name match always ranks first.
func (m Manifest) Search(query string) []Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var out []Entry
	exact := -1
	for i, e := range m.Lessons {
		if strings.EqualFold(e.Name, query) {
			exact = i
			out = append(out, e)
			break
		}
	}
	for _, match := range fuzzy.Find(query, m.Names()) {
		if match.Index == exact {
			continue
		}
		out = append(out, m.Lessons[match.Index])
	}
	return out
}
