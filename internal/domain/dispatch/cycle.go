package dispatch

import "time"

// Cycle is a round in which each target receives at most one dispatch.
// Corresponds to the 'dispatch_cycles' and 'cycle_deliveries' tables.
type Cycle struct {
	Number        int64
	SentTargetIDs []string
	StartedAt     time.Time
}

// Has reports whether targetID was already served in this cycle.
func (c *Cycle) Has(targetID string) bool {
	for _, id := range c.SentTargetIDs {
		if id == targetID {
			return true
		}
	}
	return false
}
