package fs

import (
	"fmt"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func applyHugetlb(dir string, res *configs.Resources) error {
	for _, h := range res.HugetlbLimit {
		file := fmt.Sprintf("hugetlb.%s.limit_in_bytes", h.Pagesize)
		if err := writeFile(dir, file, fmt.Sprintf("%d", h.Limit)); err != nil {
			return err
		}
	}
	return nil
}

func applyNetCls(dir string, res *configs.Resources) error {
	if res.NetClsClassid == 0 {
		return nil
	}
	return writeFile(dir, "net_cls.classid", fmt.Sprintf("%d", res.NetClsClassid))
}

func applyNetPrio(dir string, res *configs.Resources) error {
	for _, p := range res.NetPrioIfpriomap {
		if err := writeFile(dir, "net_prio.ifpriomap", fmt.Sprintf("%s %d", p.Interface, p.Priority)); err != nil {
			return err
		}
	}
	return nil
}

// applyFreezer drives the v1 freezer subsystem's freezer.state file.
// Thawing after a freeze can transiently read back "FREEZING" before
// settling; callers polling for completion should treat that as
// in-progress, not an error (4.E "Freeze" edge case).
func applyFreezer(dir string, state configs.FreezerState) error {
	if state == configs.Undefined {
		return nil
	}
	return writeFile(dir, "freezer.state", string(state))
}
