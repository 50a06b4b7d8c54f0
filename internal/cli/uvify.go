package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poetry-uvify/pkg/poetry"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

const defaultManifest = "pyproject.toml"

// uvifyCommand creates the uvify command.
func (c *CLI) uvifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uvify [pyproject.toml]",
		Short: "Convert a Poetry pyproject.toml to PEP 621 metadata with uv sources",
		Long: `Convert the [tool.poetry] section of a pyproject.toml into a standard
[project] table. Custom package indexes become [[tool.uv.index]] entries and
dependencies pinned to an index are listed under [tool.uv.sources].

The converted document is printed to stdout unless --in-place is given.
Projects that use no custom index have nothing to add and are left alone.

Examples:
  poetry-uvify uvify                          # print converted ./pyproject.toml
  poetry-uvify uvify -i path/to/pyproject.toml
  poetry-uvify uvify --build-backend ""       # keep the original [build-system]
  UVIFY_BUILD_BACKEND=pdm.backend UVIFY_BUILD_REQUIRES=pdm-backend poetry-uvify uvify`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			path := defaultManifest
			if len(args) == 1 {
				path = args[0]
			}
			return runUvify(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), path, cfg)
		},
	}

	cmd.Flags().BoolP("in-place", "i", false, "rewrite the file instead of printing to stdout")
	cmd.Flags().String("build-backend", uvify.Hatchling.Backend, `build backend for [build-system] ("" keeps the original)`)
	cmd.Flags().StringSlice("build-requires", uvify.Hatchling.Requires, "requirements for [build-system]")

	return cmd
}

// runUvify converts the project at path and writes the result to stdout or
// back to path.
func runUvify(ctx context.Context, stdout, stderr io.Writer, path string, cfg config) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	project, doc, err := poetry.Load(path)
	if err != nil {
		return err
	}
	logger.Debug("loaded project", "name", project.Name(), "groups", project.GroupNames())

	u := uvify.New(project, logger)
	u.BuildSystem = cfg.buildSystem()

	out, ok, err := u.Eject(doc)
	if err != nil {
		return err
	}
	if !ok {
		printInfo(stderr, "Nothing to add: %s uses no custom package indexes", path)
		return nil
	}

	if !cfg.InPlace {
		return out.Encode(stdout)
	}

	if err := pyproject.WriteFile(path, out); err != nil {
		return err
	}
	prog.done("Converted " + path)
	printSuccess(stderr, "Rewrote %s", path)
	if u.BuildSystem == nil {
		printWarning(stderr, "Kept the original [build-system]; it may still point at poetry-core")
	} else {
		printDetail(stderr, "build-backend: %s", u.BuildSystem.Backend)
	}
	return nil
}
