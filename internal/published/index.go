// Package published records which emotes the messaging platform already
// holds, and under which file reference.
package published

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
)

// Index maps emote ids to platform file references. Records are written once
// and never updated or removed.
type Index struct {
	store kvstore.Store
}

func NewIndex(store kvstore.Store) *Index {
	return &Index{store: store}
}

func key(id string) []byte {
	return []byte("emote_uploaded_file_id:" + id)
}

// IsPublished reports whether id has a recorded file reference.
func (i *Index) IsPublished(ctx context.Context, id string) (bool, error) {
	ok, err := i.store.Has(ctx, key(id))
	if err != nil {
		return false, fmt.Errorf("checking published state of %s: %w", id, err)
	}
	return ok, nil
}

// Lookup returns the file reference recorded for id.
func (i *Index) Lookup(ctx context.Context, id string) (string, bool, error) {
	ref, err := i.store.GetOptional(ctx, key(id))
	if err != nil {
		return "", false, fmt.Errorf("looking up file reference of %s: %w", id, err)
	}
	if ref == nil {
		return "", false, nil
	}
	return string(ref), true, nil
}

// RecordPublished stores the platform file reference for id. Callers invoke
// it only after the platform acknowledged the upload.
func (i *Index) RecordPublished(ctx context.Context, id, fileRef string) error {
	if err := i.store.Set(ctx, key(id), []byte(fileRef)); err != nil {
		return fmt.Errorf("recording file reference of %s: %w", id, err)
	}
	return nil
}
