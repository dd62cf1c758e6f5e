// Package configs provides the container-related configuration types
// consumed by libcontainer: the in-memory shape that specconv produces
// from an OCI bundle and that the birth protocol carries across the
// main/intermediate/init processes.
package configs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	devices "github.com/opencontainers/cgroups/devices/config"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
)

// Rlimit mirrors a single resource limit entry (§3 data model has no
// dedicated Rlimit type but every process-birth step needs one).
type Rlimit struct {
	Type int    `json:"type"`
	Hard uint64 `json:"hard"`
	Soft uint64 `json:"soft"`
}

// IDMap is a single contiguous uid/gid mapping range (§3: "three
// integers (host_id, container_id, size)").
type IDMap struct {
	ContainerID int64 `json:"container_id"`
	HostID      int64 `json:"host_id"`
	Size        int64 `json:"size"`
}

// Capabilities lists the five capability sets the Syscall Surface can
// install (4.B set_capability).
type Capabilities struct {
	Bounding    []string `json:"bounding,omitempty"`
	Effective   []string `json:"effective,omitempty"`
	Inheritable []string `json:"inheritable,omitempty"`
	Permitted   []string `json:"permitted,omitempty"`
	Ambient     []string `json:"ambient,omitempty"`
}

// IOPriority mirrors specs.LinuxIOPriority; kept as its own type so
// validation (class/priority range) lives next to the rest of the
// config instead of in the OCI spec package.
type IOPriority struct {
	Class    string `json:"class"`
	Priority int    `json:"priority"`
}

// Config is the fully resolved, process-independent description of a
// container, produced once by specconv.CreateLibcontainerConfig and
// then carried, unmodified, across every stage of the birth protocol.
type Config struct {
	// NoPivotRoot substitutes MS_MOVE + chroot for pivot_root, used
	// when the bundle's rootfs is itself a ramdisk.
	NoPivotRoot bool `json:"no_pivot_root,omitempty"`

	// ParentDeathSignal is delivered to init if the main process dies
	// first (PR_SET_PDEATHSIG).
	ParentDeathSignal int `json:"parent_death_signal,omitempty"`

	// Rootfs is the absolute, canonicalized bundle root (§4.I step 3).
	Rootfs string `json:"rootfs"`

	Umask *uint32 `json:"umask,omitempty"`

	// Readonlyfs remounts "/" read-only after the pivot (4.D step 9).
	Readonlyfs bool `json:"readonlyfs,omitempty"`

	// RootPropagation is one of the MS_{SHARED,PRIVATE,SLAVE,UNBINDABLE}
	// flags applied before the recursive self-bind (4.D step 1).
	RootPropagation int `json:"rootPropagation,omitempty"`

	Mounts []*Mount `json:"mounts"`

	Devices []*devices.Device `json:"devices"`

	MountLabel string `json:"mount_label,omitempty"`

	Hostname   string `json:"hostname,omitempty"`
	Domainname string `json:"domainname,omitempty"`

	Namespaces Namespaces `json:"namespaces"`

	Capabilities *Capabilities `json:"capabilities,omitempty"`

	Routes []*Route `json:"routes,omitempty"`

	// Cgroups holds the resource-controller configuration applied by
	// the Cgroup Manager (4.E).
	Cgroups *Cgroup `json:"cgroups"`

	AppArmorProfile string `json:"apparmor_profile,omitempty"`
	ProcessLabel    string `json:"process_label,omitempty"`

	Rlimits []Rlimit `json:"rlimits,omitempty"`

	OomScoreAdj *int `json:"oom_score_adj,omitempty"`

	UIDMappings []IDMap `json:"uid_mappings,omitempty"`
	GIDMappings []IDMap `json:"gid_mappings,omitempty"`

	MaskPaths     []string `json:"mask_paths,omitempty"`
	ReadonlyPaths []string `json:"readonly_paths,omitempty"`

	Sysctl map[string]string `json:"sysctl,omitempty"`

	NoNewPrivileges bool `json:"no_new_privileges,omitempty"`

	Hooks Hooks `json:"hooks,omitempty"`

	Version string `json:"version"`

	Labels []string `json:"labels"`

	NoNewKeyring bool `json:"no_new_keyring,omitempty"`

	IntelRdt *IntelRdt `json:"intel_rdt,omitempty"`

	// RootlessEUID is set when the caller's effective uid is non-zero
	// (§4.F / userns Non-goal about rootless ID-map invocation still
	// applies at the binary-exec boundary).
	RootlessEUID bool `json:"rootless_euid,omitempty"`

	// RootlessCgroups tolerates cgroup write failures instead of
	// failing create (§9 Open Question on rootless + v1 controllers).
	RootlessCgroups bool `json:"rootless_cgroups,omitempty"`

	IOPriority *IOPriority `json:"io_priority,omitempty"`

	// NetDevices moves existing host network interfaces into the
	// container's network namespace by name (supplements the
	// "networking beyond namespace creation" Non-goal: this is
	// namespace membership, not network configuration).
	NetDevices map[string]*LinuxNetDevice `json:"net_devices,omitempty"`

	// Process is the workload the init process ultimately execve's
	// into, once every earlier birth-protocol step has finished
	// preparing its environment (4.J).
	Process *Process `json:"process,omitempty"`
}

// Process describes the single workload command a container's init
// process execve's into, mirroring the subset of specs.Process the
// Workload Executor (4.J) needs once namespaces, rootfs, and
// capabilities are already in place.
type Process struct {
	Args []string `json:"args"`
	Env  []string `json:"env,omitempty"`
	Cwd  string   `json:"cwd"`

	UID             int   `json:"uid"`
	GID             int   `json:"gid"`
	AdditionalGroups []int `json:"additional_groups,omitempty"`

	Terminal bool `json:"terminal,omitempty"`
}

// LinuxNetDevice names a host interface to move into the container's
// network namespace via netlink once that namespace has been entered.
type LinuxNetDevice struct {
	Name string `json:"name,omitempty"`
}

// Route is a post-create network route entry; left as a plain data
// carrier, installed by a collaborator outside the core (§1 Non-goals).
type Route struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	InterfaceName string `json:"interface_name,omitempty"`
}

// HasHook reports whether any of the named hooks has at least one
// entry configured.
func (c *Config) HasHook(names ...HookName) bool {
	if c.Hooks == nil {
		return false
	}
	for _, h := range names {
		if len(c.Hooks[h]) > 0 {
			return true
		}
	}
	return false
}

type (
	HookName string
	HookList []Hook
	Hooks    map[HookName]HookList
)

const (
	// Prestart is deprecated by CreateRuntime/CreateContainer but kept
	// for bundles that still set it.
	Prestart        HookName = "prestart"
	CreateRuntime   HookName = "createRuntime"
	CreateContainer HookName = "createContainer"
	StartContainer  HookName = "startContainer"
	Poststart       HookName = "poststart"
	Poststop        HookName = "poststop"
)

// KnownHookNames returns every hook name this runtime understands.
func KnownHookNames() []string {
	return []string{
		string(Prestart),
		string(CreateRuntime),
		string(CreateContainer),
		string(StartContainer),
		string(Poststart),
		string(Poststop),
	}
}

// Hook is a single action run at one of the named lifecycle points.
type Hook interface {
	Run(*specs.State) error
}

// NewFunctionHook wraps an in-process callback as a Hook.
func NewFunctionHook(f func(*specs.State) error) FuncHook {
	return FuncHook{run: f}
}

type FuncHook struct {
	run func(*specs.State) error
}

func (f FuncHook) Run(s *specs.State) error { return f.run(s) }

// Command is an external hook process; Run serializes the container
// state to its stdin and enforces the hook's timeout.
type Command struct {
	Path    string         `json:"path"`
	Args    []string       `json:"args"`
	Env     []string       `json:"env"`
	Dir     string         `json:"dir"`
	Timeout *time.Duration `json:"timeout"`
}

func NewCommandHook(cmd *Command) CommandHook {
	return CommandHook{Command: cmd}
}

type CommandHook struct {
	*Command
}

func (c *Command) Run(s *specs.State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.Cmd{
		Path:   c.Path,
		Args:   c.Args,
		Env:    c.Env,
		Stdin:  bytes.NewReader(b),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	errC := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("%w, stdout: %s, stderr: %s", err, stdout.String(), stderr.String())
		}
		errC <- err
	}()
	var timerCh <-chan time.Time
	if c.Timeout != nil {
		timer := time.NewTimer(*c.Timeout)
		defer timer.Stop()
		timerCh = timer.C
	}
	select {
	case err := <-errC:
		return err
	case <-timerCh:
		_ = cmd.Process.Kill()
		<-errC
		return fmt.Errorf("hook ran past specified timeout of %.1fs", c.Timeout.Seconds())
	}
}

// Run executes every hook registered under name, in order.
func (hooks Hooks) Run(name HookName, state *specs.State) error {
	for i, h := range hooks[name] {
		if err := h.Run(state); err != nil {
			return fmt.Errorf("error running %s hook #%d: %w", name, i, err)
		}
	}
	return nil
}

func (hooks HookList) SetDefaultEnv(env []string) {
	for _, h := range hooks {
		if ch, ok := h.(CommandHook); ok && len(ch.Env) == 0 {
			ch.Env = env
		}
	}
}

func (hooks *Hooks) UnmarshalJSON(b []byte) error {
	var state map[HookName][]CommandHook
	if err := json.Unmarshal(b, &state); err != nil {
		return err
	}
	*hooks = Hooks{}
	for n, cmds := range state {
		if len(cmds) == 0 {
			continue
		}
		list := make(HookList, 0, len(cmds))
		for _, h := range cmds {
			list = append(list, h)
		}
		(*hooks)[n] = list
	}
	return nil
}

func (hooks *Hooks) MarshalJSON() ([]byte, error) {
	serialize := func(list []Hook) (out []CommandHook) {
		for _, h := range list {
			if ch, ok := h.(CommandHook); ok {
				out = append(out, ch)
			} else {
				logrus.Warnf("cannot serialize hook of type %T, skipping", h)
			}
		}
		return out
	}
	return json.Marshal(map[string]any{
		"prestart":        serialize((*hooks)[Prestart]),
		"createRuntime":   serialize((*hooks)[CreateRuntime]),
		"createContainer": serialize((*hooks)[CreateContainer]),
		"startContainer":  serialize((*hooks)[StartContainer]),
		"poststart":       serialize((*hooks)[Poststart]),
		"poststop":        serialize((*hooks)[Poststop]),
	})
}
