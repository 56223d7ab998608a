package config

import (
	"flag"
	"os"

	"github.com/abrahampo1/cryptogest-sub001/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data root directory (default from Config)
//	-e string   cloud backup service base URL (default from Config)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataRoot, "d", cfg.DataRoot, "data root directory")
	fs.StringVar(&cfg.CloudEndpoint, "e", cfg.CloudEndpoint, "cloud backup service base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
