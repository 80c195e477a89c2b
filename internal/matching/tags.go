package matching

import (
	"strings"
)

// TagSet is a deduplicated list of case-folded, trimmed tags in first-seen order.
type TagSet []string

// NewTagSet normalizes tags. Blank entries are dropped.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		set = append(set, tag)
	}
	return set
}

// ParseTags splits a delimited tag string. Commas, semicolons and pipes are
// accepted as separators.
func ParseTags(raw string) TagSet {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	return NewTagSet(parts...)
}

// Overlap counts the tags shared with other. Both sides are normalized, so
// sets built without NewTagSet compare the same way.
func (t TagSet) Overlap(other TagSet) int {
	if len(t) == 0 || len(other) == 0 {
		return 0
	}

	index := make(map[string]struct{}, len(t))
	for _, tag := range NewTagSet(t...) {
		index[tag] = struct{}{}
	}

	count := 0
	for _, tag := range NewTagSet(other...) {
		if _, ok := index[tag]; ok {
			count++
		}
	}
	return count
}

// Document renders the set as the text fed to the vectorizer.
func (t TagSet) Document() string {
	return strings.Join(t, " ")
}

func (t TagSet) String() string {
	return strings.Join(t, ",")
}
