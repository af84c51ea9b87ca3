//go:build !linux

package dispatch

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/realtechee/platform/errors"
)

// getMemoryStats returns current memory usage in bytes.
// gopsutil supports darwin and windows through the same call.
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}

	return v.Total, v.Available, nil
}
