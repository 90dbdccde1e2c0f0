package service

import (
	"strings"

	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/registry"
)

// TagRequirements groups the requirements of one tag for display
type TagRequirements struct {
	Tag          string                       `json:"tag"`
	Known        bool                         `json:"known"`
	Requirements []entity.DocumentRequirement `json:"requirements"`
}

// groupRequirements resolves tags to their requirement groups, keeping the
// first occurrence of each tag. Unknown tags get an empty group.
func groupRequirements(tags []string) []TagRequirements {
	seen := make(map[string]bool, len(tags))
	out := make([]TagRequirements, 0, len(tags))

	for _, raw := range tags {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		known := false
		if t, ok := registry.ParseTag(name); ok {
			name = t.String()
			known = true
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		out = append(out, TagRequirements{
			Tag:          name,
			Known:        known,
			Requirements: registry.RequirementsFor(name),
		})
	}
	return out
}

// normalizeTags trims, canonicalizes known tags and drops duplicates,
// keeping display order.
func normalizeTags(tags []string) []string {
	groups := groupRequirements(tags)
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Tag)
	}
	return out
}

// canonicalTag maps a known tag to its registry spelling
func canonicalTag(tag string) string {
	if t, ok := registry.ParseTag(tag); ok {
		return t.String()
	}
	return strings.TrimSpace(tag)
}
