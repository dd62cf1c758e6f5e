// Command crucible is a low-level OCI container runtime: the CLI
// surface (§6) over the libcontainer core. Its argv[0]/argv[1]
// dispatch mirrors runc's own main(): before the urfave/cli app ever
// runs, a hidden re-exec role is checked first, since by the time a
// cloned process reaches here it must not do anything except join its
// namespaces and report in.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer/logs"
	"github.com/cellarium-oci/crucible/libcontainer/process"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

func main() {
	if len(os.Args) > 1 {
		switch process.Role(os.Args[1]) {
		case process.RoleIntermediate:
			if err := process.RunIntermediate(system.Linux{}); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case process.RoleInit:
			if err := process.RunInit(system.Linux{}); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case process.RoleTenant:
			if err := process.RunTenant(system.Linux{}); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	app := cli.NewApp()
	app.Name = "crucible"
	app.Usage = "an OCI runtime spec implementation"
	app.Version = version
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "root", Value: defaultStateRoot(), Usage: "root directory for container state"},
		&cli.StringFlag{Name: "log", Usage: "path to log file, defaults to stderr"},
		&cli.StringFlag{Name: "log-format", Value: "text", Usage: "log format: text or json"},
		&cli.BoolFlag{Name: "systemd-cgroup", Usage: "use systemd for cgroup management"},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if c.String("log-format") == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}
		if p := c.String("log"); p != "" {
			f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("opening log file %s: %w", p, err)
			}
			logs.ConfigureChild(f)
		}
		return nil
	}
	app.Commands = []*cli.Command{
		createCommand,
		startCommand,
		runCommand,
		killCommand,
		deleteCommand,
		stateCommand,
		pauseCommand,
		resumeCommand,
		listCommand,
		execCommand,
		psCommand,
		eventsCommand,
		specCommand,
		checkpointCommand,
		restoreCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStateRoot() string {
	if os.Geteuid() == 0 {
		return "/run/crucible"
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return xdg + "/crucible"
	}
	return "/tmp/crucible"
}
