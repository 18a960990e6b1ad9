package protocol

import (
	"sync/atomic"
	"time"
)

var lastStamp atomic.Int64

// stamp returns epoch milliseconds, never lower than a previous stamp in this
// process even if the wall clock steps backwards.
func stamp() int64 {
	now := time.Now().UnixMilli()
	for {
		last := lastStamp.Load()
		if now <= last {
			return last
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
