package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/specconv"
)

// loadSpec reads config.json out of the OCI bundle named by the
// --bundle flag (defaulting to the working directory, matching runc).
func loadSpec(c *cli.Context) (*specs.Spec, string, error) {
	bundle := c.String("bundle")
	if bundle == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		bundle = wd
	}
	bundle, err := filepath.Abs(bundle)
	if err != nil {
		return nil, "", err
	}
	b, err := os.ReadFile(filepath.Join(bundle, "config.json"))
	if err != nil {
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var spec specs.Spec
	if err := json.Unmarshal(b, &spec); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &spec, bundle, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func buildConfig(c *cli.Context, spec *specs.Spec, bundle string) (*configs.Config, error) {
	opts := specconv.Opts{
		CgroupPath:   c.String("cgroup-path"),
		UseSystemd:   c.Bool("systemd-cgroup"),
		RootlessEUID: os.Geteuid() != 0,
		NoPivotRoot:  c.Bool("no-pivot"),
	}
	return specconv.CreateLibcontainerConfig(c.Args().First(), bundle, spec, opts)
}
