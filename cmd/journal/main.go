package main

import (
	"os"

	"github.com/amanthanvi/journal/internal/cli"
	"github.com/amanthanvi/journal/internal/version"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	cmd.SetErr(os.Stderr)
	os.Exit(cli.Execute(cmd, os.Stderr))
}
