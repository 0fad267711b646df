package trainer

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const watchdogInterval = 100 * time.Millisecond

// watchRSS polls the resident set size of pid until ctx is done and calls
// exceeded once if it goes over ceiling bytes.
func watchRSS(ctx context.Context, pid int, ceiling uint64, exceeded func(rss uint64)) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return
	}

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := p.MemoryInfoWithContext(ctx)
			if err != nil {
				// The process is gone or not readable; Wait will report why.
				return
			}
			if info.RSS > ceiling {
				exceeded(info.RSS)
				return
			}
		}
	}
}
