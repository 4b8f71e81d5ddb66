package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/journal/internal/storage"
)

const dateOnlyLayout = "2006-01-02"

var nowFn = time.Now

func newAddCommand(deps commandDeps) *cobra.Command {
	var (
		title   string
		date    string
		content string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a journal entry",
		Example: "  journal add --title 'Day 1' --date 2024-01-01 --content 'hello'\n" +
			"  echo 'hello' | journal add --title 'Day 1' --content -",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("add does not accept positional arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			when := nowFn()
			if date != "" {
				parsed, err := parseEntryDate(date)
				if err != nil {
					return err
				}
				when = parsed
			}
			body, err := resolveContent(cmd.InOrStdin(), content)
			if err != nil {
				return mapCommandError(err)
			}
			draft := storage.EntryDraft{Title: title, Date: when, Content: body}
			if err := draft.Validate(); err != nil {
				return asExitError(ExitCodeUsage, err)
			}

			return withStore(cmd, deps, func(ctx context.Context, store storage.Provider) error {
				entry, err := store.AddEntry(ctx, draft)
				if err != nil {
					return err
				}
				return printEntryOutput(deps, entry)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Entry title")
	cmd.Flags().StringVar(&date, "date", "", "Entry date (YYYY-MM-DD or RFC 3339, default now)")
	cmd.Flags().StringVar(&content, "content", "", "Entry content, or - to read it from stdin")
	return cmd
}

func newListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List journal entries",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("ls does not accept positional arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, deps, func(ctx context.Context, store storage.Provider) error {
				entries, err := store.LoadAllEntries(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if entries == nil {
						entries = []storage.Entry{}
					}
					return printJSON(deps.out, entries)
				}
				for _, entry := range entries {
					if _, err := fmt.Fprintf(deps.out, "%d\t%s\t%s\n", entry.ID, formatEntryDate(entry.Date), entry.Title); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newEditCommand(deps commandDeps) *cobra.Command {
	var (
		title   string
		date    string
		content string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an existing journal entry",
		Example: "  journal edit 3 --title 'Day 1, revised'\n" +
			"  journal edit 3 --date 2024-01-02",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("edit requires exactly one entry id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("title") && !flags.Changed("date") && !flags.Changed("content") {
				return usageErrorf("edit requires at least one of --title, --date or --content")
			}
			var when time.Time
			if flags.Changed("date") {
				if when, err = parseEntryDate(date); err != nil {
					return err
				}
			}
			if flags.Changed("content") {
				if content, err = resolveContent(cmd.InOrStdin(), content); err != nil {
					return mapCommandError(err)
				}
			}

			return withStore(cmd, deps, func(ctx context.Context, store storage.Provider) error {
				current, err := findEntry(ctx, store, id)
				if err != nil {
					return err
				}
				if flags.Changed("title") {
					current.Title = title
				}
				if flags.Changed("date") {
					current.Date = when
				}
				if flags.Changed("content") {
					current.Content = content
				}
				updated, err := store.UpdateEntry(ctx, current)
				if err != nil {
					return err
				}
				return printEntryOutput(deps, updated)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Updated title")
	cmd.Flags().StringVar(&date, "date", "", "Updated date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&content, "content", "", "Updated content, or - to read it from stdin")
	return cmd
}

func newRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a journal entry",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("rm requires exactly one entry id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, deps, func(ctx context.Context, store storage.Provider) error {
				if err := store.RemoveEntry(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"deleted": id})
				}
				_, err := fmt.Fprintf(deps.out, "entry removed: %d\n", id)
				return err
			})
		},
	}
}

func findEntry(ctx context.Context, store storage.Provider, id int64) (storage.Entry, error) {
	entries, err := store.LoadAllEntries(ctx)
	if err != nil {
		return storage.Entry{}, err
	}
	for _, entry := range entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return storage.Entry{}, fmt.Errorf("entry %d: %w", id, storage.ErrNotFound)
}

func printEntryOutput(deps commandDeps, entry storage.Entry) error {
	if deps.globals.JSON {
		return printJSON(deps.out, entry)
	}
	_, err := fmt.Fprintf(deps.out, "%d\t%s\t%s\n", entry.ID, formatEntryDate(entry.Date), entry.Title)
	return err
}

func parseEntryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid entry id %q", raw)
	}
	return id, nil
}

// parseEntryDate accepts a calendar date, read as midnight UTC, or a full
// RFC 3339 timestamp.
func parseEntryDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if t, err := time.Parse(dateOnlyLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Time{}, usageErrorf("invalid date %q: want YYYY-MM-DD or RFC 3339", raw)
}

func formatEntryDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dateOnlyLayout)
	}
	return t.Format(time.RFC3339)
}

func resolveContent(in io.Reader, content string) (string, error) {
	if content != "-" {
		return content, nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read content from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
