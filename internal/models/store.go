package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// StoreState gates store behavior on parse progress.
type StoreState int

const (
	StoreNew    StoreState = 0
	StoreParsed StoreState = 2
)

// String returns the lowercase state name.
func (s StoreState) String() string {
	switch s {
	case StoreNew:
		return "new"
	case StoreParsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// NoRevision marks an unset revision value, e.g. a store that has never
// been synchronized. Real revisions are always >= 0.
const NoRevision int64 = -1

// Store is an ordered collection of units tied 1:1 to a translation
// resource path.
type Store struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"` // unique resource path
	Language string `json:"language"`

	State StoreState `json:"state"`

	// LastSyncRevision is the global revision as of the last successful
	// file/DB synchronization, or NoRevision if never synced. When set it is
	// <= the maximum revision among the store's units.
	LastSyncRevision int64 `json:"last_sync_revision"`

	FileMTime time.Time `json:"file_mtime,omitempty"`
}

// NewStore creates an unsynced store for a resource path.
func NewStore(path, lang string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", lang, err)
	}
	return &Store{
		Path:             path,
		Language:         tag.String(),
		State:            StoreNew,
		LastSyncRevision: NoRevision,
	}, nil
}

// Synced reports whether the store has ever completed a synchronization.
func (s *Store) Synced() bool {
	return s.LastSyncRevision != NoRevision
}
