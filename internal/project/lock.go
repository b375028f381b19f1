package project

import (
	"fmt"
	"time"

	"github.com/inkwell-md/inkwell/internal/protocol"
)

// DefaultLockTTL keeps edit locks short: the lock is a crash/disconnect
// safety net, not a reservation, so it silently yields moments after the
// holder goes idle.
const DefaultLockTTL = time.Second

// Lock is an exclusive, expiring claim on editing one file. At most one
// live lock exists per file; an expired lock is inert and is replaced on
// the next acquisition attempt without any release message.
type Lock struct {
	By         protocol.EditorID `json:"by"`
	AcquiredAt time.Time         `json:"acquired_at"`
	TTL        time.Duration     `json:"ttl"`
}

// Live reports whether the lock still excludes other editors at now.
func (l Lock) Live(now time.Time) bool {
	return now.Before(l.AcquiredAt.Add(l.TTL))
}

// Remaining reports how long the lock stays live from now, zero if expired.
func (l Lock) Remaining(now time.Time) time.Duration {
	d := l.AcquiredAt.Add(l.TTL).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// LockedError rejects an edit because another editor holds a live lock.
// It carries the lock so callers can show who is editing and for how long.
type LockedError struct {
	Lock Lock
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("locked by editor %d", e.Lock.By)
}
