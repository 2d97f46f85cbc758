package cache

import "time"

// Clock abstracts time for testability. The engine never calls time.Now
// directly; expiry and recency tests inject a fake clock instead of sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
