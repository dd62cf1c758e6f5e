package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var createCommand = &cli.Command{
	Name:      "create",
	Usage:     "create a container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "bundle", Aliases: []string{"b"}, Usage: "path to the OCI bundle"},
		&cli.StringFlag{Name: "pid-file", Usage: "write the container's init pid to this file"},
		&cli.StringFlag{Name: "cgroup-path", Usage: "override the cgroup path derived from the bundle"},
		&cli.BoolFlag{Name: "no-pivot", Usage: "use MS_MOVE + chroot instead of pivot_root"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("create: container id required")
		}
		spec, bundle, err := loadSpec(c)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(c, spec, bundle)
		if err != nil {
			return err
		}
		_, err = libcontainer.Create(c.String("root"), id, bundle, cfg, c.String("pid-file"), true)
		return err
	},
}
