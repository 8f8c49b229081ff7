// Package content defines the item handed to the distribution engine.
//
// An Item is produced upstream (metadata enrichment is a separate concern)
// and is read-only once dispatch begins.
package content

import (
	"errors"
	"sort"
	"strings"
)

// Item is one piece of content to distribute: a video reference plus the
// text that accompanies it on each platform.
type Item struct {
	SourceURL   string   `json:"source_url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

var (
	ErrMissingSourceURL = errors.New("content: source_url is required")
	ErrMissingTitle     = errors.New("content: title is required")
)

// Validate checks the minimal upstream contract: non-empty source URL and title.
func (it Item) Validate() error {
	if strings.TrimSpace(it.SourceURL) == "" {
		return ErrMissingSourceURL
	}
	if strings.TrimSpace(it.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}

// Normalize returns a copy with hashtags deduplicated, lowercased, stripped
// of a leading '#', and sorted for stable iteration (set semantics).
func (it Item) Normalize() Item {
	if len(it.Hashtags) == 0 {
		return it
	}
	seen := make(map[string]struct{}, len(it.Hashtags))
	tags := make([]string, 0, len(it.Hashtags))
	for _, t := range it.Hashtags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t, "#")))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	sort.Strings(tags)
	cp := it
	cp.Hashtags = tags
	return cp
}

// HashtagLine renders the tags as "#a #b #c" for platforms that take a
// single free-text description field.
func (it Item) HashtagLine() string {
	if len(it.Hashtags) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range it.Hashtags {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('#')
		b.WriteString(t)
	}
	return b.String()
}
