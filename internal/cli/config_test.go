package cli

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	cmd := New(io.Discard, LogInfo).uvifyCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error: %v", args, err)
	}
	return cmd.Flags()
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(testFlags(t))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	want := config{
		InPlace:       false,
		BuildBackend:  "hatchling.build",
		BuildRequires: []string{"hatchling"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv("UVIFY_BUILD_BACKEND", "pdm.backend")
	t.Setenv("UVIFY_IN_PLACE", "true")

	cfg, err := loadConfig(testFlags(t))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.BuildBackend != "pdm.backend" {
		t.Errorf("BuildBackend = %q, want env value", cfg.BuildBackend)
	}
	if !cfg.InPlace {
		t.Error("InPlace = false, want env value true")
	}

	cfg, err = loadConfig(testFlags(t, "--build-backend", "flit_core.buildapi", "--build-requires", "flit_core>=3.2,flit_core<4"))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.BuildBackend != "flit_core.buildapi" {
		t.Errorf("BuildBackend = %q, want flag value over env", cfg.BuildBackend)
	}
	if diff := cmp.Diff([]string{"flit_core>=3.2", "flit_core<4"}, cfg.BuildRequires); diff != "" {
		t.Errorf("BuildRequires mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigBuildSystem(t *testing.T) {
	if got := (config{}).buildSystem(); got != nil {
		t.Errorf("buildSystem() with empty backend = %+v, want nil", got)
	}

	cfg := config{BuildBackend: "hatchling.build", BuildRequires: []string{"hatchling"}}
	want := &uvify.BuildSystem{Requires: []string{"hatchling"}, Backend: "hatchling.build"}
	if diff := cmp.Diff(want, cfg.buildSystem()); diff != "" {
		t.Errorf("buildSystem() mismatch (-want +got):\n%s", diff)
	}
}
