package stats

// Nop is a Provider that discards all updates. Used in tests.
type Nop struct{}

func (Nop) Incr(string) {}
func (Nop) Decr(string) {}
