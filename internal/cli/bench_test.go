package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

func BenchmarkCLIRoundTrip(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		cmd := NewRootCommand(&out, BuildInfo{Version: "bench", Commit: "bench", BuildTime: "bench"})
		cmd.SetArgs([]string{"version"})
		if err := cmd.Execute(); err != nil {
			b.Fatalf("execute version command: %v", err)
		}
	}
}

func BenchmarkCLIAddEntry(b *testing.B) {
	tmp := b.TempDir()
	args := []string{
		"--config", filepath.Join(tmp, "config.toml"),
		"--db", filepath.Join(tmp, "journal.db"),
		"add", "--title", "bench", "--date", "2024-01-01", "--content", "bench",
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		cmd := NewRootCommand(&out, BuildInfo{Version: "bench"})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			b.Fatalf("execute add command: %v", err)
		}
	}
}
