package internal

import (
	"math"
	"time"
)

// Epoch is a stored timestamp. New writes are epoch milliseconds, older
// documents carry epoch seconds, so the unit is detected by magnitude on
// read. The raw value is kept as-is so re-encoding never changes a document.
type Epoch float64

// Anything below this is read as seconds: 1e11 seconds is the year 5138,
// 1e11 milliseconds is March 1973.
const epochMillisThreshold = 1e11

// IsMillis reports whether the stored value is in milliseconds.
func (e Epoch) IsMillis() bool {
	return math.Abs(float64(e)) >= epochMillisThreshold
}

// Time converts the stored value to a time.Time whatever its unit.
func (e Epoch) Time() time.Time {
	whole, frac := math.Modf(float64(e))
	if e.IsMillis() {
		return time.UnixMilli(int64(whole)).Add(time.Duration(frac * float64(time.Millisecond)))
	}
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

func EpochMillis(t time.Time) Epoch {
	return Epoch(t.UnixMilli())
}

func EpochSeconds(t time.Time) Epoch {
	return Epoch(t.Unix())
}
