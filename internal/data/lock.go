package data

import (
	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/constants"

	"github.com/go-redsync/redsync/v4"
)

// redsyncLockFactory hands out redsync mutexes tuned for the sweep:
// held at most RetryLockExpiration, a single acquisition try because a
// busy lock means another instance owns the schedule this window.
type redsyncLockFactory struct {
	rs *redsync.Redsync
}

// NewLockFactory creates the distributed lock factory.
func NewLockFactory(rs *redsync.Redsync) biz.LockFactory {
	return &redsyncLockFactory{rs: rs}
}

func (f *redsyncLockFactory) NewMutex(name string) biz.Mutex {
	return f.rs.NewMutex(name,
		redsync.WithExpiry(constants.RetryLockExpiration),
		redsync.WithTries(constants.RetryLockTries),
	)
}
