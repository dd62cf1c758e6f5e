package process

import (
	"os"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Args bundles everything the three birth-protocol stages need to
// agree on before the first clone, equivalent to youki's
// ContainerArgs (original_source/crates/libcontainer/src/process/
// args.rs). It never crosses the clone/exec boundary as Go values, since
// each stage is a freshly exec'd process image with no shared memory:
// the config travels as the JSON bootstrap message on the channel, and
// StateDir and ContainerID as environment variables.
type Args struct {
	ContainerID string
	Config      *configs.Config

	// StateDir is the container's state directory; init binds
	// "<StateDir>/notify.sock" before pivoting into the rootfs and
	// blocks accepting a connection on it right before execve, so a
	// created-but-not-started container never runs its workload
	// (4.H/4.K boundary, §6 notify protocol).
	StateDir string

	// Stdio, to be set as the init process's 0/1/2 once the terminal
	// (if any) has been set up.
	Stdin, Stdout, Stderr *os.File

	// ConsoleSocket, when non-nil, receives the pty master fd once
	// init allocates one (4.B "console handling").
	ConsoleSocket *os.File

	PidFile string

	// Detach records whether the caller runs detached. Start does not
	// read it; it always returns once init signals readiness.
	Detach bool
}

// Env keys carrying protocol bookkeeping across exec boundaries. The
// channel fd itself is always 3 (childExec dup2's it there); these
// carry the small amount of additional context a freshly exec'd image
// cannot otherwise recover, mirroring runc's _LIBCONTAINER_* variables.
const (
	EnvInitPipe      = "_CRUCIBLE_CHANNEL_FD"
	EnvStateDir      = "_CRUCIBLE_STATEDIR"
	EnvContainerID   = "_CRUCIBLE_ID"
	EnvConsoleFifo   = "_CRUCIBLE_CONSOLE"
	EnvNamespacePath = "_CRUCIBLE_NSENTER"
)
