package config

import (
	"flag"
	"os"
	"time"

	"github.com/driftsync/driftsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   host[:port] of the home node
//	-d string   path of the local replica database
//	-k          allow plaintext http/ws
//	-t int      request timeout in seconds
//	-l string   log level (debug, info, warn, error)
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other
// components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-d", "-k", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Server, "s", cfg.Server, "host and port of the home node")
	fs.StringVar(&cfg.Database, "d", cfg.Database, "path of the local replica database")
	fs.BoolVar(&cfg.Insecure, "k", cfg.Insecure, "allow plaintext http/ws")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
