// Package storagetest holds the behavioural checks every storage.Provider
// implementation is expected to pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amanthanvi/journal/internal/storage"
)

// Factory returns an empty provider. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Provider

func RunProviderTests(t *testing.T, newProvider Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, p storage.Provider)
	}{
		{"AddReturnsDraftFieldsWithNewID", testAddReturnsDraftFields},
		{"AddAssignsUniqueIDs", testAddAssignsUniqueIDs},
		{"AddRejectsInvalidDraft", testAddRejectsInvalidDraft},
		{"LoadAllEmpty", testLoadAllEmpty},
		{"LoadAllOrderedByID", testLoadAllOrderedByID},
		{"UpdateRoundTrip", testUpdateRoundTrip},
		{"UpdateMissingEntry", testUpdateMissingEntry},
		{"UpdateRejectsInvalidEntry", testUpdateRejectsInvalidEntry},
		{"OutOfRangeDateLeavesStoreReadable", testOutOfRangeDateLeavesStoreReadable},
		{"RemoveThenLoad", testRemoveThenLoad},
		{"RemoveMissingEntry", testRemoveMissingEntry},
		{"DayOneScenario", testDayOneScenario},
		{"ConcurrentAdds", testConcurrentAdds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.fn(t, newProvider(t))
		})
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// RequireEntry asserts field equality, comparing dates as instants.
func RequireEntry(t *testing.T, want, got storage.Entry) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, want.Content, got.Content)
	require.Truef(t, want.Date.Equal(got.Date), "date: want %s, got %s", want.Date, got.Date)
}

func testAddReturnsDraftFields(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	draft := storage.EntryDraft{
		Title:   "Morning pages",
		Date:    time.Date(2024, 3, 9, 7, 30, 15, 123456789, time.FixedZone("CET", 3600)),
		Content: "three pages, longhand",
	}

	entry, err := p.AddEntry(ctx, draft)
	require.NoError(t, err)
	require.Positive(t, entry.ID)
	require.Equal(t, draft.Title, entry.Title)
	require.Equal(t, draft.Content, entry.Content)
	require.True(t, draft.Date.Equal(entry.Date))
}

func testAddAssignsUniqueIDs(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	ids := map[int64]struct{}{}
	for i := 0; i < 25; i++ {
		entry, err := p.AddEntry(ctx, storage.EntryDraft{
			Title:   fmt.Sprintf("entry %d", i),
			Date:    day(2024, 1, 1).AddDate(0, 0, i),
			Content: "body",
		})
		require.NoError(t, err)
		_, exists := ids[entry.ID]
		require.False(t, exists, "duplicate id %d", entry.ID)
		ids[entry.ID] = struct{}{}
	}
}

func testAddRejectsInvalidDraft(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	drafts := []storage.EntryDraft{
		{Title: "", Date: day(2024, 1, 1), Content: "body"},
		{Title: "title", Date: day(2024, 1, 1), Content: "  "},
		{Title: "title", Content: "body"},
	}
	for _, draft := range drafts {
		_, err := p.AddEntry(ctx, draft)
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrInvalidEntry)

		var modifyErr *storage.ModifyEntryError
		require.ErrorAs(t, err, &modifyErr)
		require.Equal(t, storage.ModifyInvalid, modifyErr.Kind)
	}

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func testLoadAllEmpty(t *testing.T, p storage.Provider) {
	entries, err := p.LoadAllEntries(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func testLoadAllOrderedByID(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	// Dates run backwards so ordering by date would differ from ordering by id.
	for i := 0; i < 5; i++ {
		_, err := p.AddEntry(ctx, storage.EntryDraft{
			Title:   fmt.Sprintf("entry %d", i),
			Date:    day(2024, 6, 30).AddDate(0, 0, -i),
			Content: "body",
		})
		require.NoError(t, err)
	}

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].ID, entries[i].ID)
	}
}

func testUpdateRoundTrip(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	created, err := p.AddEntry(ctx, storage.EntryDraft{Title: "draft", Date: day(2024, 2, 1), Content: "v1"})
	require.NoError(t, err)

	changed := storage.Entry{ID: created.ID, Title: "final", Date: day(2024, 2, 2), Content: "v2"}
	updated, err := p.UpdateEntry(ctx, changed)
	require.NoError(t, err)
	RequireEntry(t, changed, updated)

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	RequireEntry(t, changed, entries[0])
}

func testUpdateMissingEntry(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	created, err := p.AddEntry(ctx, storage.EntryDraft{Title: "keep", Date: day(2024, 2, 1), Content: "same"})
	require.NoError(t, err)

	_, err = p.UpdateEntry(ctx, storage.Entry{ID: created.ID + 100, Title: "x", Date: day(2024, 2, 1), Content: "y"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	var modifyErr *storage.ModifyEntryError
	require.ErrorAs(t, err, &modifyErr)
	require.Equal(t, storage.ModifyNotFound, modifyErr.Kind)
	require.Equal(t, created.ID+100, modifyErr.ID)

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	RequireEntry(t, created, entries[0])
}

func testUpdateRejectsInvalidEntry(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	created, err := p.AddEntry(ctx, storage.EntryDraft{Title: "keep", Date: day(2024, 2, 1), Content: "same"})
	require.NoError(t, err)

	invalid := created
	invalid.Title = " "
	_, err = p.UpdateEntry(ctx, invalid)
	require.ErrorIs(t, err, storage.ErrInvalidEntry)
	require.False(t, errors.Is(err, storage.ErrNotFound))

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	RequireEntry(t, created, entries[0])
}

func testOutOfRangeDateLeavesStoreReadable(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	kept, err := p.AddEntry(ctx, storage.EntryDraft{Title: "kept", Date: day(2024, 1, 1), Content: "body"})
	require.NoError(t, err)

	badDates := []time.Time{
		day(10000, 1, 1),
		day(-1, 12, 31),
		time.Date(9999, 12, 31, 23, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60)),
	}
	for _, date := range badDates {
		_, err := p.AddEntry(ctx, storage.EntryDraft{Title: "far", Date: date, Content: "body"})
		require.ErrorIsf(t, err, storage.ErrInvalidEntry, "add with date %s", date)

		var modifyErr *storage.ModifyEntryError
		require.ErrorAs(t, err, &modifyErr)
		require.Equal(t, storage.ModifyInvalid, modifyErr.Kind)

		moved := kept
		moved.Date = date
		_, err = p.UpdateEntry(ctx, moved)
		require.ErrorIsf(t, err, storage.ErrInvalidEntry, "update with date %s", date)
	}

	edge, err := p.AddEntry(ctx, storage.EntryDraft{Title: "edge", Date: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC), Content: "body"})
	require.NoError(t, err)

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	RequireEntry(t, kept, entries[0])
	RequireEntry(t, edge, entries[1])
}

func testRemoveThenLoad(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	first, err := p.AddEntry(ctx, storage.EntryDraft{Title: "a", Date: day(2024, 1, 1), Content: "a"})
	require.NoError(t, err)
	second, err := p.AddEntry(ctx, storage.EntryDraft{Title: "b", Date: day(2024, 1, 2), Content: "b"})
	require.NoError(t, err)

	require.NoError(t, p.RemoveEntry(ctx, first.ID))

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second.ID, entries[0].ID)
	for _, entry := range entries {
		require.NotEqual(t, first.ID, entry.ID)
	}
}

func testRemoveMissingEntry(t *testing.T, p storage.Provider) {
	err := p.RemoveEntry(context.Background(), 4242)
	require.ErrorIs(t, err, storage.ErrNotFound)

	var storageErr *storage.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, storage.StorageNotFound, storageErr.Kind)
	require.Equal(t, int64(4242), storageErr.ID)
}

func testDayOneScenario(t *testing.T, p storage.Provider) {
	ctx := context.Background()

	created, err := p.AddEntry(ctx, storage.EntryDraft{Title: "Day 1", Date: day(2024, 1, 1), Content: "hello"})
	require.NoError(t, err)
	RequireEntry(t, storage.Entry{ID: created.ID, Title: "Day 1", Date: day(2024, 1, 1), Content: "hello"}, created)

	updated, err := p.UpdateEntry(ctx, storage.Entry{ID: created.ID, Title: "Day 1", Date: day(2024, 1, 1), Content: "hello world"})
	require.NoError(t, err)
	RequireEntry(t, storage.Entry{ID: created.ID, Title: "Day 1", Date: day(2024, 1, 1), Content: "hello world"}, updated)

	require.NoError(t, p.RemoveEntry(ctx, created.ID))

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func testConcurrentAdds(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	const workers = 8
	const perWorker = 5

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = map[int64]struct{}{}
		errs []error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				entry, err := p.AddEntry(ctx, storage.EntryDraft{
					Title:   fmt.Sprintf("worker %d entry %d", w, i),
					Date:    day(2024, 5, 1),
					Content: "concurrent",
				})
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					ids[entry.ID] = struct{}{}
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, ids, workers*perWorker)

	entries, err := p.LoadAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, workers*perWorker)
}
