package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ValidationError holds per-entry validation failure messages keyed by
// "list[i].field".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return "invalid emote registry: " + strings.Join(parts, "; ")
}

// Validate checks that every entry carries the fields the pipelines key on
// and that ids are unique.
func Validate(entries []Entry) error {
	errs := make(map[string]string)
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		prefix := fmt.Sprintf("list[%d]", i)
		if strings.TrimSpace(e.ID) == "" {
			errs[prefix+".id"] = "id is required"
		} else if first, dup := seen[e.ID]; dup {
			errs[prefix+".id"] = fmt.Sprintf("duplicate id %q (first at list[%d])", e.ID, first)
		} else {
			seen[e.ID] = i
		}
		if e.SourceURL == "" {
			errs[prefix+".url"] = "url is required"
		} else if u, err := url.Parse(e.SourceURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs[prefix+".url"] = "url must be absolute"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
