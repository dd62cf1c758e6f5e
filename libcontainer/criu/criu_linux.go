// Package criu wraps github.com/checkpoint-restore/go-criu/v6 for the
// checkpoint/restore Operations (§6 "checkpoint", "restore"), in the
// spirit of the upstream libcontainer criu_linux.go this project's own
// teacher repo descends from (not present in the retrieved pack, so
// the CriuOpts shape here is reconstructed from that well-known API)
// and the lighter version-check wrapper podman's pkg/criu carries.
package criu

import (
	"fmt"
	"os"

	"github.com/checkpoint-restore/go-criu/v6"
	"github.com/checkpoint-restore/go-criu/v6/rpc"
)

func boolPtr(b bool) *bool     { return &b }
func int32Ptr(i int32) *int32 { return &i }
func stringPtr(s string) *string { return &s }

// Opts mirrors the handful of CRIU dump/restore knobs the OCI runtime
// surface exposes; everything else is left at the CRIU default.
type Opts struct {
	ImagesDirectory  string
	WorkDirectory    string
	ParentImage      string
	LeaveRunning     bool
	TCPEstablished   bool
	ShellJob         bool
	FileLocks        bool
	PreDump          bool
	ManageCgroupsMode rpc.CriuCgMode
}

// MinVersion is the lowest CRIU release this runtime has been
// validated against; CheckVersion fails loudly rather than attempting
// a dump/restore CRIU itself may refuse partway through.
const MinVersion = 31600

func CheckVersion() error {
	c := criu.MakeCriu()
	v, err := c.GetCriuVersion()
	if err != nil {
		return fmt.Errorf("criu: checking version: %w", err)
	}
	if v < MinVersion {
		return fmt.Errorf("criu: version %d is older than the minimum supported %d", v, MinVersion)
	}
	return nil
}

// Dump checkpoints the process tree rooted at pid into opts.ImagesDirectory.
func Dump(pid int, opts Opts) error {
	imgDir, err := openOrCreate(opts.ImagesDirectory)
	if err != nil {
		return err
	}
	defer imgDir.Close()

	criuOpts := &rpc.CriuOpts{
		Pid:            int32Ptr(int32(pid)),
		ImagesDirFd:    int32Ptr(int32(imgDir.Fd())),
		LogLevel:       int32Ptr(4),
		LogFile:        stringPtr("dump.log"),
		LeaveRunning:   boolPtr(opts.LeaveRunning),
		TcpEstablished: boolPtr(opts.TCPEstablished),
		ShellJob:       boolPtr(opts.ShellJob),
		FileLocks:      boolPtr(opts.FileLocks),
	}
	if opts.ParentImage != "" {
		criuOpts.ParentImg = stringPtr(opts.ParentImage)
	}
	if opts.ManageCgroupsMode != 0 {
		criuOpts.ManageCgroupsMode = &opts.ManageCgroupsMode
	}

	c := criu.MakeCriu()
	if opts.PreDump {
		return c.PreDump(criuOpts, nil)
	}
	return c.Dump(criuOpts, nil)
}

// Restore resumes a process tree previously dumped into opts.ImagesDirectory.
func Restore(opts Opts) error {
	imgDir, err := openOrCreate(opts.ImagesDirectory)
	if err != nil {
		return err
	}
	defer imgDir.Close()

	criuOpts := &rpc.CriuOpts{
		ImagesDirFd:    int32Ptr(int32(imgDir.Fd())),
		LogLevel:       int32Ptr(4),
		LogFile:        stringPtr("restore.log"),
		TcpEstablished: boolPtr(opts.TCPEstablished),
		ShellJob:       boolPtr(opts.ShellJob),
		FileLocks:      boolPtr(opts.FileLocks),
	}

	c := criu.MakeCriu()
	return c.Restore(criuOpts, nil)
}

func openOrCreate(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("criu: creating image dir %s: %w", dir, err)
	}
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("criu: opening image dir %s: %w", dir, err)
	}
	return f, nil
}
