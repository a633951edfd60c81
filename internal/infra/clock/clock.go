// Package clock provides the wall clock used by the ledger sweep.
package clock

import (
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/port"
)

// Real reads time.Now and arms timers with time.AfterFunc.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) port.Timer {
	return time.AfterFunc(d, f)
}
