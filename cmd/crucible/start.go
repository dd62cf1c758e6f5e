package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var startCommand = &cli.Command{
	Name:      "start",
	Usage:     "start a created container's workload",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("start: container id required")
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		status, err := ctr.Status()
		if err != nil {
			return err
		}
		if status != libcontainer.Created {
			return fmt.Errorf("start: container %s is %s, not created", id, status)
		}
		return ctr.Start()
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "create and immediately start a container",
	ArgsUsage: "<container-id>",
	Flags: append(append([]cli.Flag{}, createCommand.Flags...),
		&cli.BoolFlag{Name: "detach", Aliases: []string{"d"}, Usage: "run the container in the background"}),
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("run: container id required")
		}
		spec, bundle, err := loadSpec(c)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(c, spec, bundle)
		if err != nil {
			return err
		}
		detach := c.Bool("detach")
		ctr, err := libcontainer.Create(c.String("root"), id, bundle, cfg, c.String("pid-file"), detach)
		if err != nil {
			return err
		}
		if err := ctr.Start(); err != nil {
			return err
		}
		if detach {
			return nil
		}
		status, err := ctr.Wait()
		if err != nil {
			return err
		}
		os.Exit(status)
		return nil
	},
}
