// Package cli implements the poetry-uvify command-line interface.
//
// The tool reads a Poetry pyproject.toml and either prints the converted
// document or rewrites the file in place. The CLI is built on cobra, logs
// through charmbracelet/log and takes its settings from viper.
//
// # Commands
//
//   - uvify: convert a pyproject.toml (stdout by default, --in-place to rewrite)
//   - completion: generate shell completion scripts
//
// # Logging
//
// Log lines and status messages go to stderr so stdout carries only the
// converted document. --verbose (-v) enables debug logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/poetry-uvify/pkg/buildinfo"
)

// appName is the application name used for display and environment prefixes.
const appName = "poetry-uvify"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Convert Poetry projects to PEP 621 metadata for uv",
		Long:         `poetry-uvify rewrites the [tool.poetry] section of a pyproject.toml as a standard [project] table, moving custom package indexes and per-dependency sources into [tool.uv].`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.uvifyCommand())
	root.AddCommand(c.completionCommand())

	return root
}
