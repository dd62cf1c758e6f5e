package configs

// IntelRdt configures the Intel Resource Director Technology group a
// container's init process is placed into (SPEC_FULL.md "Supplemented
// features"); the schemata values are passed through to the resctrl
// filesystem verbatim.
type IntelRdt struct {
	// ClosID is the resctrl "class of service" directory name; empty
	// means let the runtime derive one from the container id.
	ClosID string `json:"closID,omitempty"`

	// L3CacheSchema is the cache allocation technology schema.
	L3CacheSchema string `json:"l3CacheSchema,omitempty"`

	// MemBwSchema is the memory bandwidth allocation schema.
	MemBwSchema string `json:"memBwSchema,omitempty"`

	// EnableCMT/EnableMBM turn on cache/memory-bandwidth monitoring
	// (read-only stats, no schemata write).
	EnableCMT bool `json:"enableCMT,omitempty"`
	EnableMBM bool `json:"enableMBM,omitempty"`
}
