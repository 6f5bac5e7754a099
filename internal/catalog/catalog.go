// Package catalog loads the emote registry document into an immutable
// Catalog that is handed explicitly to the ingestion pipeline and the search
// index.
package catalog

import (
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

// SupportedVersion is the only registry schema version accepted.
const SupportedVersion = 1

// MediaKind selects the transform and upload strategy for an entry.
type MediaKind int

const (
	Static MediaKind = iota
	Animated
)

func (k MediaKind) String() string {
	switch k {
	case Static:
		return "static"
	case Animated:
		return "animated"
	default:
		return "unknown"
	}
}

// Entry is one emote and its publishing metadata.
type Entry struct {
	Ref            string
	ID             string
	Name           string
	RequiresColons bool
	Kind           MediaKind
	SourceURL      string
	Safe           bool
	GuildID        string
	GuildName      string
}

// Eligible reports whether the entry may be published and searched.
func (e Entry) Eligible() bool {
	return e.Safe
}

// registryDocument mirrors the JSON registry file.
type registryDocument struct {
	Version int             `json:"version"`
	List    []registryEntry `json:"list"`
}

type registryEntry struct {
	Ref            string `json:"ref"`
	ID             string `json:"id"`
	Name           string `json:"name"`
	RequiresColons bool   `json:"requires_colons"`
	Animated       bool   `json:"animated"`
	URL            string `json:"url"`
	Safe           bool   `json:"safe"`
	GuildID        string `json:"guild_id"`
	GuildName      string `json:"guild_name"`
}

// Catalog is the immutable, ordered set of entries loaded for one process
// run. It is safe for concurrent use.
type Catalog struct {
	entries []Entry
}

// New builds a Catalog from entries, copying the slice.
func New(entries []Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...)}
}

// Load reads and parses the registry file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading emote registry %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading emote registry %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a registry document. Any version other than
// SupportedVersion is rejected outright.
func Parse(data []byte) (*Catalog, error) {
	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding registry: %v", err)
	}
	if doc.Version != SupportedVersion {
		return nil, apperrors.Newf(apperrors.ErrUnsupportedVersion, http.StatusUnprocessableEntity,
			"got version %d, want %d", doc.Version, SupportedVersion)
	}
	entries := make([]Entry, 0, len(doc.List))
	for _, raw := range doc.List {
		kind := Static
		if raw.Animated {
			kind = Animated
		}
		entries = append(entries, Entry{
			Ref:            raw.Ref,
			ID:             raw.ID,
			Name:           raw.Name,
			RequiresColons: raw.RequiresColons,
			Kind:           kind,
			SourceURL:      raw.URL,
			Safe:           raw.Safe,
			GuildID:        raw.GuildID,
			GuildName:      raw.GuildName,
		})
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return &Catalog{entries: entries}, nil
}

// Len returns the total number of entries, eligible or not.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// All yields every entry in catalog order.
func (c *Catalog) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range c.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Eligible yields the entries marked safe, in catalog order.
func (c *Catalog) Eligible() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range c.entries {
			if !e.Eligible() {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
