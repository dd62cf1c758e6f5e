// Package capabilities resolves a container's configured capability
// lists into the five kernel sets and drives the Syscall Surface
// through the drop sequence the init process runs at step 12 of the
// birth protocol (4.G), grounded on the youki reference's
// capabilities.rs (original_source/crates/libcontainer/src/
// capabilities.rs) translated onto github.com/moby/sys/capability,
// the real ecosystem replacement for the teacher's unpublished
// nestybox-libs/capability.
package capabilities

import (
	"fmt"

	capability "github.com/moby/sys/capability"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// Drop installs cfg's five capability sets in an order that never
// grants a capability the bounding set doesn't already contain:
// Bounding first, then Effective/Permitted/Inheritable/Ambient.
func Drop(surface system.Surface, cfg *configs.Capabilities) error {
	if cfg == nil {
		cfg = &configs.Capabilities{}
	}
	order := []struct {
		set  system.CapSet
		caps []string
	}{
		{system.Bounding, cfg.Bounding},
		{system.Effective, cfg.Effective},
		{system.Permitted, cfg.Permitted},
		{system.Inheritable, cfg.Inheritable},
		{system.Ambient, cfg.Ambient},
	}
	for _, o := range order {
		if err := surface.SetCapability(o.set, o.caps); err != nil {
			return fmt.Errorf("dropping %v capabilities: %w", o.set, err)
		}
	}
	return nil
}

// Validate rejects any capability name the running kernel doesn't
// recognize, so a typo in config.json fails at build time rather than
// inside the namespace.
func Validate(cfg *configs.Capabilities) error {
	if cfg == nil {
		return nil
	}
	all := append(append(append(append(
		append([]string{}, cfg.Bounding...), cfg.Effective...), cfg.Permitted...), cfg.Inheritable...), cfg.Ambient...)
	for _, name := range all {
		if _, err := capability.Parse(name); err != nil {
			return fmt.Errorf("unknown capability %q: %w", name, err)
		}
	}
	return nil
}
