package configs

import "github.com/willf/bitset"

// Mount is a single rootfs mount entry (§3 Rootfs MountConfig).
// RecAttrSet/RecAttrClear use a bitset so the per-mount-attribute
// syscall (mount_setattr) can be issued with exactly the set/clear mask
// the bundle asked for, without the field ballooning into a dozen bools.
type Mount struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Device      string `json:"device"`
	Data        string `json:"data"`

	// Flags are the classic mount(2) MS_* flags.
	Flags int `json:"flags"`

	// PropagationFlags carries MS_SHARED/MS_PRIVATE/MS_SLAVE/MS_UNBINDABLE
	// entries applied with mount(2) after the main mount (bind mounts
	// need a second call to set propagation).
	PropagationFlags []int `json:"propagation_flags,omitempty"`

	// Recursive requests AT_RECURSIVE when applying RecAttr below.
	Recursive bool `json:"recursive,omitempty"`

	// RecAttrSet / RecAttrClear are the set/clear attribute masks for
	// mount_setattr(2), used by `idmap`-less recursive bind mounts
	// (e.g. MOUNT_ATTR_RDONLY, MOUNT_ATTR_NOSUID). *bitset.BitSet
	// marshals itself to/from JSON, so these cross the bootstrap
	// handshake to init the same way every other Config field does.
	RecAttrSet   *bitset.BitSet `json:"rec_attr_set,omitempty"`
	RecAttrClear *bitset.BitSet `json:"rec_attr_clear,omitempty"`

	// Extensions holds options not represented by MS_* flags (size=,
	// mode=, ...). The rootfs pipeline does not read it; only Data is
	// passed to mount(2).
	Extensions map[string]string `json:"extensions,omitempty"`
}

// HasRecAttr reports whether a per-mount-attribute syscall should run
// after the base mount (4.D step 3).
func (m *Mount) HasRecAttr() bool {
	return (m.RecAttrSet != nil && m.RecAttrSet.Any()) ||
		(m.RecAttrClear != nil && m.RecAttrClear.Any())
}

// Bit positions for RecAttrSet/RecAttrClear, chosen to match
// mount_setattr(2)'s MOUNT_ATTR_* flag bits directly so turning the
// bitset into the raw attribute mask is a plain shift.
const (
	RecAttrReadonly = 0 // MOUNT_ATTR_RDONLY
	RecAttrNoSuid   = 1 // MOUNT_ATTR_NOSUID
	RecAttrNoDev    = 2 // MOUNT_ATTR_NODEV
	RecAttrNoExec   = 3 // MOUNT_ATTR_NOEXEC
)

// SetAttrMask and ClearAttrMask turn RecAttrSet/RecAttrClear into the
// raw masks mount_setattr(2) expects.
func (m *Mount) SetAttrMask() uint64   { return recAttrMask(m.RecAttrSet) }
func (m *Mount) ClearAttrMask() uint64 { return recAttrMask(m.RecAttrClear) }

func recAttrMask(b *bitset.BitSet) uint64 {
	if b == nil {
		return 0
	}
	var mask uint64
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		mask |= 1 << i
	}
	return mask
}
