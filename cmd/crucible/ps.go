package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var psCommand = &cli.Command{
	Name:      "ps",
	Usage:     "list the processes inside a container's cgroup",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		ctr, err := libcontainer.Load(c.String("root"), c.Args().First())
		if err != nil {
			return err
		}
		pids, err := ctr.Pids()
		if err != nil {
			return err
		}
		for _, pid := range pids {
			fmt.Println(pid)
		}
		return nil
	},
}

var eventsCommand = &cli.Command{
	Name:      "events",
	Usage:     "report container stats as a one-shot JSON snapshot",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "stats", Usage: "accepted for compatibility; a one-shot stats snapshot is always printed"},
	},
	Action: func(c *cli.Context) error {
		ctr, err := libcontainer.Load(c.String("root"), c.Args().First())
		if err != nil {
			return err
		}
		stats, err := ctr.Stats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}
