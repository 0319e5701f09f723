package reconcile

import "time"

// SetNow pins the coordinator's clock so tests can force same-second paths.
func (c *Coordinator) SetNow(now func() time.Time) {
	c.now = now
}
