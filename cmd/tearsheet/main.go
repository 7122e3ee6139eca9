// Command tearsheet runs portfolio analyses from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	completion().Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&analyzeCmd{}, "portfolio")
	commander.Register(&validateCmd{}, "portfolio")
	commander.Register(&pricesCmd{}, "market data")
	commander.Register(&ratiosCmd{}, "market data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
