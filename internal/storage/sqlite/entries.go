package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amanthanvi/journal/internal/storage"
)

const (
	insertEntrySQL = `
		INSERT INTO entries(title, date, content)
		VALUES(?, ?, ?)
		RETURNING id, title, date, content
	`
	selectEntriesSQL = `
		SELECT id, title, date, content
		FROM entries
		ORDER BY id ASC
	`
	updateEntrySQL = `
		UPDATE entries
		SET title = ?, date = ?, content = ?
		WHERE id = ?
		RETURNING id, title, date, content
	`
	deleteEntrySQL = `DELETE FROM entries WHERE id = ?`
)

type entryRow struct {
	ID      int64  `db:"id"`
	Title   string `db:"title"`
	Date    string `db:"date"`
	Content string `db:"content"`
}

func (r entryRow) entry() (storage.Entry, error) {
	date, err := parseTime(r.Date)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("map entry %d: %w", r.ID, err)
	}
	return storage.Entry{
		ID:      r.ID,
		Title:   r.Title,
		Date:    date,
		Content: r.Content,
	}, nil
}

func (s *Store) LoadAllEntries(ctx context.Context) ([]storage.Entry, error) {
	const op = "load entries"

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, selectEntriesSQL); err != nil {
		return nil, &storage.StorageError{Op: op, Kind: storage.StorageEngine, Err: err}
	}

	entries := make([]storage.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.entry()
		if err != nil {
			return nil, &storage.StorageError{Op: op, Kind: storage.StorageEngine, ID: row.ID, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) AddEntry(ctx context.Context, draft storage.EntryDraft) (storage.Entry, error) {
	const op = "add entry"

	if err := draft.Validate(); err != nil {
		return storage.Entry{}, &storage.ModifyEntryError{Op: op, Kind: storage.ModifyInvalid, Err: err}
	}

	var row entryRow
	if err := s.db.GetContext(ctx, &row, insertEntrySQL, draft.Title, fmtTime(draft.Date), draft.Content); err != nil {
		return storage.Entry{}, s.writeFailed(ctx, op, 0, err)
	}
	entry, err := row.entry()
	if err != nil {
		return storage.Entry{}, s.writeFailed(ctx, op, row.ID, err)
	}
	return entry, nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry storage.Entry) (storage.Entry, error) {
	const op = "update entry"

	if err := entry.Validate(); err != nil {
		return storage.Entry{}, &storage.ModifyEntryError{Op: op, Kind: storage.ModifyInvalid, ID: entry.ID, Err: err}
	}

	var row entryRow
	err := s.db.GetContext(ctx, &row, updateEntrySQL, entry.Title, fmtTime(entry.Date), entry.Content, entry.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Entry{}, &storage.ModifyEntryError{Op: op, Kind: storage.ModifyNotFound, ID: entry.ID, Err: storage.ErrNotFound}
	}
	if err != nil {
		return storage.Entry{}, s.writeFailed(ctx, op, entry.ID, err)
	}
	updated, err := row.entry()
	if err != nil {
		return storage.Entry{}, s.writeFailed(ctx, op, entry.ID, err)
	}
	return updated, nil
}

func (s *Store) RemoveEntry(ctx context.Context, id int64) error {
	const op = "remove entry"

	result, err := s.db.ExecContext(ctx, deleteEntrySQL, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "remove entry failed", "id", id, "err", err)
		return &storage.StorageError{Op: op, Kind: storage.StorageEngine, ID: id, Err: err}
	}
	count, err := result.RowsAffected()
	if err != nil {
		s.logger.ErrorContext(ctx, "remove entry failed", "id", id, "err", err)
		return &storage.StorageError{Op: op, Kind: storage.StorageEngine, ID: id, Err: fmt.Errorf("rows affected: %w", err)}
	}
	if count == 0 {
		return &storage.StorageError{Op: op, Kind: storage.StorageNotFound, ID: id, Err: storage.ErrNotFound}
	}
	return nil
}

func (s *Store) writeFailed(ctx context.Context, op string, id int64, err error) error {
	attrs := []any{"op", op, "err", err}
	if id != 0 {
		attrs = append(attrs, "id", id)
	}
	s.logger.ErrorContext(ctx, op+" failed", attrs...)
	return &storage.ModifyEntryError{Op: op, Kind: storage.ModifyRejected, ID: id, Err: err}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
