// Command journal-man renders the journal CLI reference as man pages or
// Markdown, for packaging.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/amanthanvi/journal/internal/cli"
	"github.com/amanthanvi/journal/internal/version"
)

func main() {
	outDir := flag.String("out", "dist/man", "directory to write pages into")
	rawFormat := flag.String("format", "man", "page format: man or markdown")
	flag.Parse()

	if err := run(*outDir, *rawFormat); err != nil {
		fmt.Fprintf(os.Stderr, "journal-man: %v\n", err)
		os.Exit(1)
	}
}

func run(outDir, rawFormat string) error {
	format, err := cli.ParseDocFormat(rawFormat)
	if err != nil {
		return err
	}
	return cli.GenerateDocs(outDir, format, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
}
