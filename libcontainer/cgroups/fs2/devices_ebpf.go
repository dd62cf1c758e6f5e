package fs2

import (
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"

	devices "github.com/opencontainers/cgroups/devices/config"
)

// applyDeviceProgram compiles rules into a BPF_PROG_TYPE_CGROUP_DEVICE
// program and attaches it to the cgroup at path, replacing any
// program this runtime previously attached there. v2 has no
// devices.allow/deny text files (4.E); the eBPF program is the only
// device access control surface, following the same approach runc's
// libcontainer/cgroups/ebpf package uses via cilium/ebpf.
func applyDeviceProgram(path string, rules []*devices.Rule) error {
	insts, err := compileDeviceRules(rules)
	if err != nil {
		return fmt.Errorf("cgroups/fs2: compiling device program: %w", err)
	}
	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Type:         ebpf.CGroupDevice,
		License:      "Apache",
		Instructions: insts,
	})
	if err != nil {
		return fmt.Errorf("cgroups/fs2: loading device program: %w", err)
	}
	defer prog.Close()

	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cgroups/fs2: opening cgroup %s: %w", path, err)
	}
	defer dir.Close()
	// BPF_PROG_ATTACH binds the program to the cgroup itself, so it stays
	// attached after the program and directory fds here are closed.
	if err := link.RawAttachProgram(link.RawAttachProgramOptions{
		Target:  int(dir.Fd()),
		Program: prog,
		Attach:  ebpf.AttachCGroupDevice,
	}); err != nil {
		return fmt.Errorf("cgroups/fs2: attaching device program to %s: %w", path, err)
	}
	return nil
}

// compileDeviceRules builds a device-filter program modelled on youki's
// (original_source/crates/libcgroups/src/v2/devices/program.rs): load
// type/major/minor/access out of the bpf_cgroup_dev_ctx at R1, then
// test each allow rule in order and return 1 (allow) on the first
// match; everything else falls through to a default return of 0
// (deny). Deny rules are dropped, and a rule is matched on its major
// and minor numbers only (a wildcard field is not compared); the
// device type and access bits are loaded but not compared.
func compileDeviceRules(rules []*devices.Rule) (asm.Instructions, error) {
	insts := asm.Instructions{
		// R2 = ctx->access_type (type in low 16 bits, access in high 16)
		asm.LoadMem(asm.R2, asm.R1, 0, asm.Word),
		// R3 = ctx->major
		asm.LoadMem(asm.R3, asm.R1, 4, asm.Word),
		// R4 = ctx->minor
		asm.LoadMem(asm.R4, asm.R1, 8, asm.Word),
	}
	var allow []*devices.Rule
	for _, r := range rules {
		if r.Allow {
			allow = append(allow, r)
		}
	}

	const denyLabel = "device_deny"
	for i, r := range allow {
		nextLabel := denyLabel
		if i+1 < len(allow) {
			nextLabel = fmt.Sprintf("rule_%d", i+1)
		}
		block := ruleMatch(r, nextLabel)
		block[0] = block[0].WithSymbol(fmt.Sprintf("rule_%d", i))
		insts = append(insts, block...)
	}
	// Default deny, labeled so the last rule's mismatch jump (and an
	// empty rule set) lands here.
	insts = append(insts, asm.Mov.Imm(asm.R0, 0).WithSymbol(denyLabel), asm.Return())
	return insts, nil
}

// ruleMatch emits "if major/minor don't match, jump to label; else
// return allow (1)". label names either the next allow-rule's first
// instruction or the default-deny tail.
func ruleMatch(r *devices.Rule, label string) asm.Instructions {
	var insts asm.Instructions
	if r.Major >= 0 {
		insts = append(insts, asm.JNE.Imm(asm.R3, int32(r.Major), label))
	}
	if r.Minor >= 0 {
		insts = append(insts, asm.JNE.Imm(asm.R4, int32(r.Minor), label))
	}
	insts = append(insts,
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),
	)
	return insts
}
