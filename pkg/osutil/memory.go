package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this (page aligned MaxInt64) when memory is unrestricted.
// cgroup v2 reports "max" instead.
const unrestrictedCgroupV1Limit = 9223372036854771712

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",                   // v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // v1
}

// GetTotalMemory returns the total available memory size, preferring the
// container's cgroup limit over the host's physical memory.
func GetTotalMemory() uint64 {
	for _, location := range cgroupMemoryLimitLocations {
		raw, err := os.ReadFile(location)
		if err != nil {
			continue
		}

		if limit, ok := parseCgroupLimit(string(raw)); ok {
			return limit
		}
		break
	}
	return memory.TotalMemory()
}

func parseCgroupLimit(raw string) (uint64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 || limit == unrestrictedCgroupV1Limit {
		return 0, false
	}
	return limit, true
}
