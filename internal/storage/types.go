package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Entry is a persisted journal record. ID is assigned by the backend on
// creation and never changes afterwards.
type Entry struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
}

// EntryDraft carries the caller-supplied fields of an entry that has not been
// stored yet.
type EntryDraft struct {
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
}

// Provider is the capability set every storage backend implements.
//
// LoadAllEntries returns entries in ascending ID order. RemoveEntry reports a
// *StorageError, while AddEntry and UpdateEntry report a *ModifyEntryError;
// both carry a Kind and match ErrNotFound, ErrInvalidEntry and ErrRejected
// through errors.Is.
type Provider interface {
	LoadAllEntries(ctx context.Context) ([]Entry, error)
	AddEntry(ctx context.Context, draft EntryDraft) (Entry, error)
	RemoveEntry(ctx context.Context, id int64) error
	UpdateEntry(ctx context.Context, entry Entry) (Entry, error)
}

const (
	minYear = 0
	maxYear = 9999
)

func (d EntryDraft) Validate() error {
	return validateFields(d.Title, d.Date, d.Content)
}

func (e Entry) Validate() error {
	return validateFields(e.Title, e.Date, e.Content)
}

// Draft returns the mutable fields of e.
func (e Entry) Draft() EntryDraft {
	return EntryDraft{Title: e.Title, Date: e.Date, Content: e.Content}
}

func validateFields(title string, date time.Time, content string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidEntry)
	}
	if date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	// Dates are persisted as RFC 3339 text, which has a four-digit year.
	if year := date.UTC().Year(); year < minYear || year > maxYear {
		return fmt.Errorf("%w: date year %d is outside %d..%d in UTC", ErrInvalidEntry, year, minYear, maxYear)
	}
	return nil
}
