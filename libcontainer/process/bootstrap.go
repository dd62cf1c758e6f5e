package process

import (
	"encoding/json"
	"fmt"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// bootstrapData is everything a freshly exec'd intermediate or init
// process needs to recover before it can do anything useful, encoded
// as the Text field of one KindBootstrap message. Config is the only
// large payload; everything else in Args either crosses as an env var
// (Args' Env* constants) or an inherited fd (stdio, console socket).
type bootstrapData struct {
	ContainerID string          `json:"container_id"`
	Config      *configs.Config `json:"config"`
	PidFile     string          `json:"pid_file,omitempty"`
	StateDir    string          `json:"state_dir,omitempty"`
}

func encodeBootstrap(args *Args) (string, error) {
	b, err := json.Marshal(bootstrapData{
		ContainerID: args.ContainerID,
		Config:      args.Config,
		PidFile:     args.PidFile,
		StateDir:    args.StateDir,
	})
	if err != nil {
		return "", fmt.Errorf("process: encoding bootstrap data: %w", err)
	}
	return string(b), nil
}

func decodeBootstrap(payload string) (*bootstrapData, error) {
	var d bootstrapData
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("process: decoding bootstrap data: %w", err)
	}
	return &d, nil
}
