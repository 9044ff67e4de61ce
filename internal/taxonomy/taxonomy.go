// Package taxonomy holds the read-only tag lookup table handed to the
// tagging step. It is loaded per call from a store and never cached globally.
package taxonomy

import (
	"encoding/json"
	"sort"
	"strings"
)

// Tag is a selectable leaf tag.
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Category groups tags. Mandatory categories need at least one selected tag.
type Category struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Mandatory bool   `json:"isMandatory"`
	Tags      []Tag  `json:"tags"`
}

// Taxonomy is the full tag table.
type Taxonomy struct {
	Categories []Category `json:"categories"`
}

// New builds a taxonomy, ordering categories and tags by title.
func New(categories []Category) Taxonomy {
	out := make([]Category, len(categories))
	copy(out, categories)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	for i := range out {
		tags := make([]Tag, len(out[i].Tags))
		copy(tags, out[i].Tags)
		sort.SliceStable(tags, func(a, b int) bool { return tags[a].Title < tags[b].Title })
		out[i].Tags = tags
	}
	return Taxonomy{Categories: out}
}

// IsEmpty reports whether the taxonomy has no selectable tag.
func (t Taxonomy) IsEmpty() bool {
	for _, c := range t.Categories {
		if len(c.Tags) > 0 {
			return false
		}
	}
	return true
}

// HasTag reports whether id is a known leaf tag.
func (t Taxonomy) HasTag(id string) bool {
	for _, c := range t.Categories {
		for _, tag := range c.Tags {
			if tag.ID == id {
				return true
			}
		}
	}
	return false
}

// HasParent reports whether id can parent a proposed tag: a category or a tag.
func (t Taxonomy) HasParent(id string) bool {
	for _, c := range t.Categories {
		if c.ID == id {
			return true
		}
	}
	return t.HasTag(id)
}

// HasTitle reports whether an existing category or tag already uses title,
// compared case-insensitively.
func (t Taxonomy) HasTitle(title string) bool {
	title = strings.TrimSpace(title)
	for _, c := range t.Categories {
		if strings.EqualFold(c.Title, title) {
			return true
		}
		for _, tag := range c.Tags {
			if strings.EqualFold(tag.Title, title) {
				return true
			}
		}
	}
	return false
}

// MandatoryTitles returns the titles of mandatory categories.
func (t Taxonomy) MandatoryTitles() []string {
	var out []string
	for _, c := range t.Categories {
		if c.Mandatory {
			out = append(out, c.Title)
		}
	}
	return out
}

// PromptJSON renders the taxonomy as indented JSON for a model prompt.
func (t Taxonomy) PromptJSON() string {
	data, err := json.MarshalIndent(t.Categories, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
