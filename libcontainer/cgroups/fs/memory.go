package fs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// applyMemory writes memory.limit_in_bytes and memory.memsw.limit_in_bytes.
//
// When raising both limits, the swap limit must be written first
// (memory.limit_in_bytes rejects a value above the current swap limit
// with EINVAL); when lowering both, the memory limit must be written
// first (the kernel forbids memsw < mem at any point in between).
// MemorySwap == -1 (unlimited swap) can never conflict with any memory
// limit, so it is always safe, and when raising always necessary, to
// write it first. This ordering, and the retry-on-EBUSY-by-reading-
// back-the-current-value trick below it, is taken directly from the
// reference backend's cgroups::v1::memory set_memory (original_source/
// crates/libcgroups/src/v1/memory.rs).
func applyMemory(dir string, res *configs.Resources) error {
	if res.Memory == 0 && res.MemorySwap == 0 && res.KernelMemory == 0 &&
		res.KernelMemoryTCP == 0 && res.Swappiness == nil &&
		!res.DisableOOMKiller && !res.OomKillDisable {
		return nil
	}

	memoryWritten, swapWritten := false, false
	if res.Memory > 0 && res.MemorySwap != 0 {
		cur, err := readMemoryLimit(dir, "memory.limit_in_bytes")
		raising := res.MemorySwap == -1 || (err == nil && res.MemorySwap > cur)
		if raising {
			if err := setMemoryLimit(dir, "memory.memsw.limit_in_bytes", res.MemorySwap); err != nil {
				return err
			}
			swapWritten = true
			if err := setMemoryLimit(dir, "memory.limit_in_bytes", res.Memory); err != nil {
				return err
			}
			memoryWritten = true
		}
	}
	if res.Memory > 0 && !memoryWritten {
		if err := setMemoryLimit(dir, "memory.limit_in_bytes", res.Memory); err != nil {
			return err
		}
	}
	if res.MemorySwap != 0 && !swapWritten {
		if err := setMemoryLimit(dir, "memory.memsw.limit_in_bytes", res.MemorySwap); err != nil {
			return err
		}
	}
	if res.MemoryReservation != 0 {
		if err := setMemoryLimit(dir, "memory.soft_limit_in_bytes", res.MemoryReservation); err != nil {
			return err
		}
	}
	if res.KernelMemory != 0 {
		if err := setMemoryLimit(dir, "memory.kmem.limit_in_bytes", res.KernelMemory); err != nil {
			return err
		}
	}
	if res.KernelMemoryTCP != 0 {
		if err := setMemoryLimit(dir, "memory.kmem.tcp.limit_in_bytes", res.KernelMemoryTCP); err != nil {
			return err
		}
	}
	if res.Swappiness != nil && *res.Swappiness >= 0 && *res.Swappiness <= 100 {
		if err := writeFile(dir, "memory.swappiness", strconv.FormatInt(*res.Swappiness, 10)); err != nil {
			return err
		}
	}
	if res.DisableOOMKiller || res.OomKillDisable {
		if err := writeFile(dir, "memory.oom_control", "1"); err != nil {
			return err
		}
	}
	return nil
}

func readMemoryLimit(dir, file string) (int64, error) {
	s, err := readFile(dir, file)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// setMemoryLimit retries once on EBUSY, reading the limit back first,
// since a concurrent reclaim can transiently hold the cgroup at a
// value the kernel refuses to move past in one write. If the retry
// also fails, the returned error folds in the controller's current and
// peak usage so the caller has something actionable beyond "busy".
func setMemoryLimit(dir, file string, value int64) error {
	err := writeFile(dir, file, strconv.FormatInt(value, 10))
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("cgroups/fs: memory limit %s=%d: %w", file, value, err)
	}
	if _, rerr := readFile(dir, file); rerr == nil {
		if err2 := writeFile(dir, file, strconv.FormatInt(value, 10)); err2 == nil {
			return nil
		}
	}
	usage, _ := readMemoryLimit(dir, usageFile(file))
	peak, _ := readMemoryLimit(dir, peakUsageFile(file))
	return fmt.Errorf("cgroups/fs: memory limit %s=%d: %w (usage=%d max_usage=%d)", file, value, err, usage, peak)
}

// usageFile and peakUsageFile derive the sibling usage/max_usage
// control files for a *.limit_in_bytes file, e.g.
// memory.memsw.limit_in_bytes -> memory.memsw.usage_in_bytes.
func usageFile(limitFile string) string {
	return strings.Replace(limitFile, "limit_in_bytes", "usage_in_bytes", 1)
}

func peakUsageFile(limitFile string) string {
	return strings.Replace(limitFile, "limit_in_bytes", "max_usage_in_bytes", 1)
}

func readMemoryStats(dir string) (stats.MemoryStats, error) {
	var ms stats.MemoryStats
	if _, err := os.Stat(dir); err != nil {
		return ms, err
	}
	ms.Usage = readMemoryData(dir, "memory.usage_in_bytes", "memory.max_usage_in_bytes", "memory.failcnt", "memory.limit_in_bytes")
	ms.Swap = readMemoryData(dir, "memory.memsw.usage_in_bytes", "memory.memsw.max_usage_in_bytes", "memory.memsw.failcnt", "memory.memsw.limit_in_bytes")
	ms.Kernel = readMemoryData(dir, "memory.kmem.usage_in_bytes", "memory.kmem.max_usage_in_bytes", "memory.kmem.failcnt", "memory.kmem.limit_in_bytes")
	return ms, nil
}

func readMemoryData(dir, usage, maxUsage, failcnt, limit string) stats.MemoryData {
	read := func(f string) uint64 {
		s, err := readFile(dir, f)
		if err != nil {
			return 0
		}
		v, _ := strconv.ParseUint(s, 10, 64)
		return v
	}
	return stats.MemoryData{
		Usage:    read(usage),
		MaxUsage: read(maxUsage),
		Failcnt:  read(failcnt),
		Limit:    read(limit),
	}
}
