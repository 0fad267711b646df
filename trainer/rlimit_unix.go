//go:build linux || darwin || freebsd

package trainer

import "golang.org/x/sys/unix"

const addressSpaceLimitSupported = true

// limitAddressSpace lowers RLIMIT_AS of the current process to limit bytes.
func limitAddressSpace(limit uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return err
	}
	if rl.Max < limit {
		limit = rl.Max
	}
	rl.Cur = limit
	return unix.Setrlimit(unix.RLIMIT_AS, &rl)
}
