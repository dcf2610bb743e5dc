// Package command provides the authctl command definitions.
//
// It uses urfave/cli/v2. Commands reach the session manager through
// session.FromContext; the manager is installed by withSession.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flag names.
const (
	flagConfig   = "config"
	flagOutput   = "output"
	flagLogLevel = "log-level"
	flagBaseURL  = "base-url"
	flagStore    = "store"
	flagStoreDir = "store-dir"
	flagRedis    = "redis-addr"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "authctl",
		Usage:   "Sign in to the identity service and manage the local session",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			RegisterCommand(),
			LogoutCommand(),
			StatusCommand(),
			WhoamiCommand(),
			WatchCommand(),
		},
		Metadata: map[string]any{},
		Before:   before,
		After:    after,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			EnvVars: []string{"AUTHSESSION_CONFIG"},
		},
		&cli.StringFlag{
			Name:    flagOutput,
			Aliases: []string{"o"},
			Usage:   "Output format: text, json, yaml",
			Value:   string(FormatText),
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "Log level override: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  flagBaseURL,
			Usage: "Identity service base URL override",
		},
		&cli.StringFlag{
			Name:  flagStore,
			Usage: "Token store backend override: badger, redis, memory",
		},
		&cli.StringFlag{
			Name:  flagStoreDir,
			Usage: "Badger token store directory override",
		},
		&cli.StringFlag{
			Name:  flagRedis,
			Usage: "Redis address override for the shared token store",
		},
	}
}
