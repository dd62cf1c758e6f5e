package cgroups

import "github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"

// Stats is an alias for the shared accounting shape every backend
// package (fs, fs2, systemd) returns, so callers only ever need to
// import package cgroups.
type Stats = stats.Stats
