package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "delete a container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "kill a running container before deleting it"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("delete: container id required")
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		return ctr.Destroy(c.Bool("force"))
	},
}

var pauseCommand = &cli.Command{
	Name:      "pause",
	Usage:     "pause a container's processes",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		ctr, err := libcontainer.Load(c.String("root"), c.Args().First())
		if err != nil {
			return err
		}
		return ctr.Pause()
	},
}

var resumeCommand = &cli.Command{
	Name:      "resume",
	Usage:     "resume a paused container",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		ctr, err := libcontainer.Load(c.String("root"), c.Args().First())
		if err != nil {
			return err
		}
		return ctr.Resume()
	},
}
