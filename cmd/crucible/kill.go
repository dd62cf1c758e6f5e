package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var killCommand = &cli.Command{
	Name:      "kill",
	Usage:     "send a signal to a container",
	ArgsUsage: "<container-id> [signal]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "signal every process in the container's cgroup"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().Get(0)
		if id == "" {
			return fmt.Errorf("kill: container id required")
		}
		sig, err := parseSignal(c.Args().Get(1))
		if err != nil {
			return err
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		if !c.Bool("all") {
			return ctr.Signal(sig)
		}
		pids, err := ctr.Pids()
		if err != nil {
			return err
		}
		var firstErr error
		for _, pid := range pids {
			if err := unix.Kill(pid, sig); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	},
}

func parseSignal(s string) (unix.Signal, error) {
	if s == "" {
		return unix.SIGTERM, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return unix.Signal(n), nil
	}
	if sig, ok := signalNames[s]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("kill: unknown signal %q", s)
}

var signalNames = map[string]unix.Signal{
	"HUP": unix.SIGHUP, "SIGHUP": unix.SIGHUP,
	"INT": unix.SIGINT, "SIGINT": unix.SIGINT,
	"QUIT": unix.SIGQUIT, "SIGQUIT": unix.SIGQUIT,
	"KILL": unix.SIGKILL, "SIGKILL": unix.SIGKILL,
	"USR1": unix.SIGUSR1, "SIGUSR1": unix.SIGUSR1,
	"USR2": unix.SIGUSR2, "SIGUSR2": unix.SIGUSR2,
	"TERM": unix.SIGTERM, "SIGTERM": unix.SIGTERM,
	"CONT": unix.SIGCONT, "SIGCONT": unix.SIGCONT,
	"STOP": unix.SIGSTOP, "SIGSTOP": unix.SIGSTOP,
}
