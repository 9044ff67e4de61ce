// Package jobs names pipeline runs and ingestion jobs.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes.
const (
	PrefixRun    = "run-"
	PrefixIngest = "ing-"
)

// NewID returns prefix followed by a random UUID without dashes, e.g.
// "run-3f2b...". The prefix should include its trailing dash.
func NewID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewRunID returns the ID of one generation pipeline run.
func NewRunID() string { return NewID(PrefixRun) }

// NewTemplateID returns a fresh template ID for an ingested image.
func NewTemplateID() string { return uuid.NewString() }

// HasPrefix reports whether id was issued with prefix and carries a valid
// UUID body.
func HasPrefix(id, prefix string) bool {
	body, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(body)
	return err == nil
}
