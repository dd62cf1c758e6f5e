package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
	"github.com/cellarium-oci/crucible/libcontainer/criu"
)

var checkpointCommand = &cli.Command{
	Name:      "checkpoint",
	Usage:     "checkpoint a running container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "image-path", Usage: "directory to store the checkpoint images"},
		&cli.StringFlag{Name: "work-path", Usage: "accepted for compatibility; not passed to CRIU"},
		&cli.StringFlag{Name: "parent-path", Usage: "parent checkpoint to diff against for a lazy dump"},
		&cli.BoolFlag{Name: "leave-running", Usage: "leave the container running after the checkpoint"},
		&cli.BoolFlag{Name: "tcp-established", Usage: "checkpoint open TCP connections"},
		&cli.BoolFlag{Name: "shell-job", Usage: "allow checkpointing a shell job"},
		&cli.BoolFlag{Name: "file-locks", Usage: "handle file locks"},
		&cli.BoolFlag{Name: "pre-dump", Usage: "dump memory pages only, leaving the container running"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("checkpoint: container id required")
		}
		if err := criu.CheckVersion(); err != nil {
			return err
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		imgPath := c.String("image-path")
		if imgPath == "" {
			imgPath = filepath.Join(ctr.StateDir(), "checkpoint")
		}
		return ctr.Checkpoint(criu.Opts{
			ImagesDirectory: imgPath,
			ParentImage:     c.String("parent-path"),
			LeaveRunning:    c.Bool("leave-running"),
			TCPEstablished:  c.Bool("tcp-established"),
			ShellJob:        c.Bool("shell-job"),
			FileLocks:       c.Bool("file-locks"),
			PreDump:         c.Bool("pre-dump"),
		})
	},
}

var restoreCommand = &cli.Command{
	Name:      "restore",
	Usage:     "restore a container from a checkpoint",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "image-path", Usage: "directory the checkpoint images were stored in"},
		&cli.BoolFlag{Name: "tcp-established", Usage: "restore previously open TCP connections"},
		&cli.BoolFlag{Name: "shell-job", Usage: "allow restoring a shell job"},
		&cli.BoolFlag{Name: "file-locks", Usage: "restore file locks"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("restore: container id required")
		}
		if err := criu.CheckVersion(); err != nil {
			return err
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		imgPath := c.String("image-path")
		if imgPath == "" {
			imgPath = filepath.Join(ctr.StateDir(), "checkpoint")
		}
		return ctr.Restore(criu.Opts{
			ImagesDirectory: imgPath,
			TCPEstablished:  c.Bool("tcp-established"),
			ShellJob:        c.Bool("shell-job"),
			FileLocks:       c.Bool("file-locks"),
		})
	},
}
