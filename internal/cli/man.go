package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra/doc"
)

type DocFormat string

const (
	DocFormatMan      DocFormat = "man"
	DocFormatMarkdown DocFormat = "markdown"
)

func ParseDocFormat(raw string) (DocFormat, error) {
	switch DocFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DocFormatMan:
		return DocFormatMan, nil
	case DocFormatMarkdown, "md":
		return DocFormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown doc format %q: want man or markdown", raw)
}

// GenerateDocs writes one page per command of the journal CLI into outDir.
func GenerateDocs(outDir string, format DocFormat, build BuildInfo) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create docs directory: %w", err)
	}

	root := NewRootCommand(io.Discard, build)
	root.DisableAutoGenTag = true

	var err error
	switch format {
	case DocFormatMan:
		err = doc.GenManTree(root, &doc.GenManHeader{
			Title:   "JOURNAL",
			Section: "1",
			Source:  "journal " + build.Version,
			Manual:  "Journal Manual",
		}, outDir)
	case DocFormatMarkdown:
		err = doc.GenMarkdownTree(root, outDir)
	default:
		return fmt.Errorf("unknown doc format %q", format)
	}
	if err != nil {
		return fmt.Errorf("generate %s docs: %w", format, err)
	}
	return nil
}
