// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/jessevdk/go-flags"
)

// CLIOptions is the thin flag surface the core binary accepts: an
// explicit config path override, and a log level override.
type CLIOptions struct {
	ConfigPath string `short:"c" long:"config" description:"Path to grin-miner.toml" value-name:"PATH"`
	LogLevel   string `short:"l" long:"loglevel" description:"Log level (trace, debug, info, warn, error)"`
}

// ParseCLIOptions parses args (typically os.Args[1:]) into a
// CLIOptions. A --help invocation returns flags.ErrHelp, which callers
// should treat as a clean exit, not a failure.
func ParseCLIOptions(args []string) (CLIOptions, error) {
	var opts CLIOptions
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return opts, err
	}
	return opts, nil
}
