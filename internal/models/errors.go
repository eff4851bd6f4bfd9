package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrStoreNotFound = errors.New("store not found")
	ErrUnitNotFound  = errors.New("unit not found")
	ErrStoreLocked   = errors.New("store is locked")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ParseError reports a document that could not be parsed.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SyncError provides detailed synchronization failure information.
type SyncError struct {
	Phase string
	Store string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: store %s: %v", e.Phase, e.Store, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
