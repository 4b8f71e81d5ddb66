package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amanthanvi/journal/internal/storage"
	"github.com/amanthanvi/journal/internal/storage/sqlite"
)

func TestVersionCommandOutputsBuildInfo(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	want := fmt.Sprintf("journal 1.2.3 (commit=abc123 built=2026-02-19T00:00:00Z schema=v%d)\n", sqlite.CurrentSchemaVersion())
	require.Equal(t, want, out)

	out, err = runCLI(t, "", "version", "--short")
	require.NoError(t, err)
	require.Equal(t, "1.2.3\n", out)
}

func TestVersionCommandOutputsJSON(t *testing.T) {
	out, err := runCLI(t, "", "--json", "version")
	require.NoError(t, err)

	var payload versionReport
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "1.2.3", payload.Version)
	require.Equal(t, "abc123", payload.Commit)
	require.Equal(t, sqlite.CurrentSchemaVersion(), payload.SchemaVersion)
}

func TestRootHasRequiredGlobalFlags(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	for _, name := range []string{"json", "config", "db", "log-level", "timeout"} {
		require.NotNilf(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
}

func TestRootHasEntryCommands(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	for _, name := range []string{"add", "ls", "edit", "rm", "version"} {
		_, _, err := cmd.Find([]string{name})
		require.NoErrorf(t, err, "expected command %q", name)
	}
}

func TestUnknownFlagReturnsUsageError(t *testing.T) {
	_, err := runCLI(t, "", "--no-such-flag")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestAddThenListRoundTrip(t *testing.T) {
	dbArgs := journalArgs(t)

	_, err := runCLI(t, "", append(dbArgs, "add", "--title", "Day 1", "--date", "2024-01-01", "--content", "hello")...)
	require.NoError(t, err)
	_, err = runCLI(t, "", append(dbArgs, "add", "--title", "Day 2", "--date", "2024-01-02T08:30:00Z", "--content", "again")...)
	require.NoError(t, err)

	entries := listEntries(t, dbArgs)
	require.Len(t, entries, 2)
	require.Equal(t, "Day 1", entries[0].Title)
	require.Equal(t, "hello", entries[0].Content)
	require.True(t, entries[0].Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "Day 2", entries[1].Title)
	require.Less(t, entries[0].ID, entries[1].ID)

	out, err := runCLI(t, "", append(dbArgs, "ls")...)
	require.NoError(t, err)
	require.Contains(t, out, "2024-01-01\tDay 1")
	require.Contains(t, out, "2024-01-02T08:30:00Z\tDay 2")
}

func TestListEmptyJournalPrintsEmptyArray(t *testing.T) {
	out, err := runCLI(t, "", append(journalArgs(t), "--json", "ls")...)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, out)
}

func TestAddReadsContentFromStdin(t *testing.T) {
	dbArgs := journalArgs(t)

	_, err := runCLI(t, "typed on stdin\n", append(dbArgs, "add", "--title", "piped", "--date", "2024-03-01", "--content", "-")...)
	require.NoError(t, err)

	entries := listEntries(t, dbArgs)
	require.Len(t, entries, 1)
	require.Equal(t, "typed on stdin", entries[0].Content)
}

func TestAddRejectsBlankTitleAsUsage(t *testing.T) {
	dbArgs := journalArgs(t)

	_, err := runCLI(t, "", append(dbArgs, "add", "--title", "  ", "--content", "x")...)
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
	require.ErrorIs(t, err, storage.ErrInvalidEntry)
}

func TestAddRejectsMalformedDate(t *testing.T) {
	_, err := runCLI(t, "", append(journalArgs(t), "add", "--title", "t", "--date", "01/02/2024", "--content", "x")...)
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestEditChangesOnlyGivenFields(t *testing.T) {
	dbArgs := journalArgs(t)

	_, err := runCLI(t, "", append(dbArgs, "add", "--title", "Day 1", "--date", "2024-01-01", "--content", "hello")...)
	require.NoError(t, err)
	id := listEntries(t, dbArgs)[0].ID

	out, err := runCLI(t, "", append(dbArgs, "--json", "edit", idArg(id), "--title", "Day 1, revised")...)
	require.NoError(t, err)

	var updated storage.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	require.Equal(t, id, updated.ID)
	require.Equal(t, "Day 1, revised", updated.Title)
	require.Equal(t, "hello", updated.Content)
	require.True(t, updated.Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	entries := listEntries(t, dbArgs)
	require.Len(t, entries, 1)
	require.Equal(t, "Day 1, revised", entries[0].Title)
}

func TestEditWithoutChangesIsUsageError(t *testing.T) {
	_, err := runCLI(t, "", append(journalArgs(t), "edit", "1")...)
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestEditMissingEntryIsNotFound(t *testing.T) {
	_, err := runCLI(t, "", append(journalArgs(t), "edit", "42", "--title", "x")...)
	require.Error(t, err)
	require.Equal(t, ExitCodeNotFound, exitCode(err))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoveDeletesEntry(t *testing.T) {
	dbArgs := journalArgs(t)

	_, err := runCLI(t, "", append(dbArgs, "add", "--title", "gone", "--date", "2024-01-01", "--content", "soon")...)
	require.NoError(t, err)
	id := listEntries(t, dbArgs)[0].ID

	out, err := runCLI(t, "", append(dbArgs, "rm", idArg(id))...)
	require.NoError(t, err)
	require.Contains(t, out, "entry removed: "+idArg(id))
	require.Empty(t, listEntries(t, dbArgs))

	_, err = runCLI(t, "", append(dbArgs, "rm", idArg(id))...)
	require.Error(t, err)
	require.Equal(t, ExitCodeNotFound, exitCode(err))
}

func TestRemoveRejectsMalformedID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		_, err := runCLI(t, "", append(journalArgs(t), "rm", "--", raw)...)
		require.Errorf(t, err, "id %q", raw)
		require.Equalf(t, ExitCodeUsage, exitCode(err), "id %q", raw)
	}
}

func TestInvalidLogLevelIsUsageError(t *testing.T) {
	_, err := runCLI(t, "", append(journalArgs(t), "--log-level", "loud", "ls")...)
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestUnusableDatabasePathIsIOError(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := runCLI(t, "",
		"--config", filepath.Join(tmp, "config.toml"),
		"--db", filepath.Join(blocker, "journal.db"),
		"ls",
	)
	require.Error(t, err)
	require.Equal(t, ExitCodeIO, exitCode(err))

	var bootErr *storage.BootstrapError
	require.True(t, errors.As(err, &bootErr))
}

func TestDatabasePathFromConfigFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[storage]\npath = \"data/journal.db\"\n"), 0o600))

	_, err := runCLI(t, "", "--config", configPath, "add", "--title", "t", "--date", "2024-01-01", "--content", "c")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(tmp, "data", "journal.db"))
}

func TestParseEntryDate(t *testing.T) {
	got, err := parseEntryDate("2024-01-01")
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	got, err = parseEntryDate("2024-01-01T10:00:00+02:00")
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))

	_, err = parseEntryDate("yesterday")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestFormatEntryDate(t *testing.T) {
	require.Equal(t, "2024-01-01", formatEntryDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024-01-01T09:15:00Z", formatEntryDate(time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)))
}

func TestGenerateDocsWritesPagePerCommand(t *testing.T) {
	manDir := filepath.Join(t.TempDir(), "man")
	require.NoError(t, GenerateDocs(manDir, DocFormatMan, testBuildInfo()))
	require.FileExists(t, filepath.Join(manDir, "journal.1"))
	require.FileExists(t, filepath.Join(manDir, "journal-add.1"))

	mdDir := filepath.Join(t.TempDir(), "md")
	require.NoError(t, GenerateDocs(mdDir, DocFormatMarkdown, testBuildInfo()))
	require.FileExists(t, filepath.Join(mdDir, "journal_edit.md"))
}

func TestParseDocFormat(t *testing.T) {
	for raw, want := range map[string]DocFormat{"": DocFormatMan, "MAN": DocFormatMan, "md": DocFormatMarkdown, "markdown": DocFormatMarkdown} {
		got, err := ParseDocFormat(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDocFormat("html")
	require.Error(t, err)
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// journalArgs points a command at a fresh database and an absent config
// file so the developer's own journal is never touched.
func journalArgs(t *testing.T) []string {
	t.Helper()
	tmp := t.TempDir()
	return []string{
		"--config", filepath.Join(tmp, "config.toml"),
		"--db", filepath.Join(tmp, "journal.db"),
	}
}

func listEntries(t *testing.T, dbArgs []string) []storage.Entry {
	t.Helper()
	out, err := runCLI(t, "", append(append([]string(nil), dbArgs...), "--json", "ls")...)
	require.NoError(t, err)

	var entries []storage.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	return entries
}

func idArg(id int64) string {
	return strconv.FormatInt(id, 10)
}

func testBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildTime: "2026-02-19T00:00:00Z",
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return withExit.ExitCode()
	}
	return -1
}
