package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

var execCommand = &cli.Command{
	Name:      "exec",
	Usage:     "run an additional process inside a running container",
	ArgsUsage: "<container-id> <command> [args...]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "cwd", Value: "/"},
		&cli.IntFlag{Name: "user", Usage: "uid to run the exec'd process as"},
		&cli.StringSliceFlag{Name: "env"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" || c.Args().Len() < 2 {
			return fmt.Errorf("exec: usage: exec <container-id> <command> [args...]")
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		proc := &configs.Process{
			Args: c.Args().Slice()[1:],
			Env:  append(os.Environ(), c.StringSlice("env")...),
			Cwd:  c.String("cwd"),
			UID:  c.Int("user"),
		}
		pid, err := ctr.Exec(proc)
		if err != nil {
			return err
		}
		fmt.Println(pid)
		return nil
	},
}
