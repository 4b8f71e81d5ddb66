package storage

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound     = errors.New("storage: entry not found")
	ErrInvalidEntry = errors.New("storage: invalid entry")
	ErrRejected     = errors.New("storage: write rejected")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

// StorageErrorKind tags the cause of a failed read or delete.
type StorageErrorKind int

const (
	// StorageEngine covers any I/O, connectivity or row-mapping failure.
	StorageEngine StorageErrorKind = iota + 1
	// StorageNotFound means the addressed entry does not exist.
	StorageNotFound
)

func (k StorageErrorKind) String() string {
	switch k {
	case StorageEngine:
		return "engine failure"
	case StorageNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// StorageError is returned by LoadAllEntries and RemoveEntry.
type StorageError struct {
	Op   string
	Kind StorageErrorKind
	ID   int64
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return formatOpError(e.Op, e.ID, e.Kind.String(), e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == ErrNotFound && e.Kind == StorageNotFound
}

// ModifyErrorKind tags the cause of a failed create or update.
type ModifyErrorKind int

const (
	// ModifyRejected means the engine refused the write: constraint
	// violation, busy database, lost connection. Retrying may succeed.
	ModifyRejected ModifyErrorKind = iota + 1
	// ModifyNotFound means the entry addressed by an update does not exist.
	ModifyNotFound
	// ModifyInvalid means the input failed validation and was never sent
	// to the engine.
	ModifyInvalid
)

func (k ModifyErrorKind) String() string {
	switch k {
	case ModifyRejected:
		return "rejected"
	case ModifyNotFound:
		return "not found"
	case ModifyInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ModifyEntryError is returned by AddEntry and UpdateEntry.
type ModifyEntryError struct {
	Op   string
	Kind ModifyErrorKind
	ID   int64
	Err  error
}

func (e *ModifyEntryError) Error() string {
	if e == nil {
		return ""
	}
	return formatOpError(e.Op, e.ID, e.Kind.String(), e.Err)
}

func (e *ModifyEntryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ModifyEntryError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrNotFound:
		return e.Kind == ModifyNotFound
	case ErrInvalidEntry:
		return e.Kind == ModifyInvalid
	case ErrRejected:
		return e.Kind == ModifyRejected
	}
	return false
}

// BootstrapStage names the step of store construction that failed.
type BootstrapStage string

const (
	StageResolvePath    BootstrapStage = "resolve path"
	StageCreateDir      BootstrapStage = "create directory"
	StageCreateDatabase BootstrapStage = "create database"
	StageConnect        BootstrapStage = "connect"
	StageMigrate        BootstrapStage = "migrate"
)

// BootstrapError is the single error returned when a store cannot be
// constructed. No store value accompanies it.
type BootstrapError struct {
	Stage BootstrapStage
	URL   string
	Err   error
}

func (e *BootstrapError) Error() string {
	if e == nil {
		return ""
	}
	target := e.URL
	if target == "" {
		target = "storage"
	}
	if e.Err == nil {
		return fmt.Sprintf("bootstrap %s: %s failed", target, e.Stage)
	}
	return fmt.Sprintf("bootstrap %s: %s: %v", target, e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func formatOpError(op string, id int64, kind string, err error) string {
	msg := op
	if msg == "" {
		msg = "storage"
	}
	if id != 0 {
		msg += " " + strconv.FormatInt(id, 10)
	}
	if err == nil {
		return msg + ": " + kind
	}
	return msg + ": " + err.Error()
}
