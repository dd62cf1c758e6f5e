package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/cellarium-oci/crucible/libcontainer"
)

var stateCommand = &cli.Command{
	Name:      "state",
	Usage:     "output a container's current state",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("state: container id required")
		}
		ctr, err := libcontainer.Load(c.String("root"), id)
		if err != nil {
			return err
		}
		st, status, err := ctr.State()
		if err != nil {
			return err
		}
		out := struct {
			ID          string `json:"id"`
			Pid         int    `json:"pid"`
			Bundle      string `json:"bundle"`
			Status      string `json:"status"`
			Created     string `json:"created"`
		}{
			ID:      st.ID,
			Pid:     st.InitProcessPid,
			Bundle:  st.Bundle,
			Status:  status.String(),
			Created: st.Created.Format("2006-01-02T15:04:05.000000000Z"),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "list known containers",
	Action: func(c *cli.Context) error {
		ids, err := libcontainer.List(c.String("root"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 8, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPID\tSTATUS\tBUNDLE")
		for _, id := range ids {
			ctr, err := libcontainer.Load(c.String("root"), id)
			if err != nil {
				continue
			}
			st, status, err := ctr.State()
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", st.ID, st.InitProcessPid, status, st.Bundle)
		}
		return w.Flush()
	},
}
