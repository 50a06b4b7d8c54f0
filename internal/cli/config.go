package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

// envPrefix namespaces environment overrides, e.g. UVIFY_BUILD_BACKEND.
const envPrefix = "UVIFY"

// config holds the settings of the uvify command. Flags override
// UVIFY_* environment variables, which override the defaults.
type config struct {
	InPlace       bool     `mapstructure:"in-place"`
	BuildBackend  string   `mapstructure:"build-backend"`
	BuildRequires []string `mapstructure:"build-requires"`
}

func loadConfig(flags *pflag.FlagSet) (config, error) {
	v := viper.New()

	v.SetDefault("in-place", false)
	v.SetDefault("build-backend", uvify.Hatchling.Backend)
	v.SetDefault("build-requires", uvify.Hatchling.Requires)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// buildSystem returns the [build-system] to write, or nil to keep the
// project's own declaration.
func (c config) buildSystem() *uvify.BuildSystem {
	if c.BuildBackend == "" {
		return nil
	}
	return &uvify.BuildSystem{
		Requires: c.BuildRequires,
		Backend:  c.BuildBackend,
	}
}
