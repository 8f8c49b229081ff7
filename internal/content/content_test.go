package content

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		item Item
		want error
	}{
		{name: "ok", item: Item{SourceURL: "https://cdn.example/v.mp4", Title: "clip"}},
		{name: "missing source", item: Item{Title: "clip"}, want: ErrMissingSourceURL},
		{name: "blank source", item: Item{SourceURL: "   ", Title: "clip"}, want: ErrMissingSourceURL},
		{name: "missing title", item: Item{SourceURL: "https://cdn.example/v.mp4"}, want: ErrMissingTitle},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNormalizeHashtags(t *testing.T) {
	t.Parallel()
	item := Item{
		SourceURL: "https://cdn.example/v.mp4",
		Title:     "clip",
		Hashtags:  []string{"#Foo", "bar", "FOO", " ", "#bar", "baz"},
	}
	got := item.Normalize()
	want := []string{"bar", "baz", "foo"}
	if len(got.Hashtags) != len(want) {
		t.Fatalf("Hashtags = %v, want %v", got.Hashtags, want)
	}
	for i := range want {
		if got.Hashtags[i] != want[i] {
			t.Fatalf("Hashtags = %v, want %v", got.Hashtags, want)
		}
	}
	// Original stays untouched.
	if len(item.Hashtags) != 6 {
		t.Fatalf("Normalize mutated the receiver: %v", item.Hashtags)
	}
}

func TestHashtagLine(t *testing.T) {
	t.Parallel()
	item := Item{Hashtags: []string{"go", "video"}}
	if got := item.HashtagLine(); got != "#go #video" {
		t.Fatalf("HashtagLine() = %q", got)
	}
	if got := (Item{}).HashtagLine(); got != "" {
		t.Fatalf("HashtagLine() on empty = %q", got)
	}
}
