package scheduler

import (
	"fmt"
	"math/rand"
	"time"
)

// RandomDelaySchedule is a cron.Schedule firing after a random delay drawn
// uniformly from [Min, Max] since the previous activation.
type RandomDelaySchedule struct {
	Min  time.Duration
	Max  time.Duration
	rand func(n int64) int64
}

func NewRandomDelaySchedule(minDelay, maxDelay time.Duration) (*RandomDelaySchedule, error) {
	if minDelay <= 0 || maxDelay < minDelay {
		return nil, fmt.Errorf("invalid rotation delay range [%s, %s]", minDelay, maxDelay)
	}
	return &RandomDelaySchedule{Min: minDelay, Max: maxDelay, rand: rand.Int63n}, nil
}

// Next implements cron.Schedule.
func (s *RandomDelaySchedule) Next(t time.Time) time.Time {
	delay := s.Min
	if spread := int64(s.Max - s.Min); spread > 0 {
		delay += time.Duration(s.rand(spread + 1))
	}
	return t.Add(delay)
}
