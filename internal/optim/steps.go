package optim

// RemainingSteps is an iteration budget. Done reports true only while the counter is exactly zero.
type RemainingSteps struct {
	count int
}

// NewRemainingSteps starts the budget at count.
func NewRemainingSteps(count int) *RemainingSteps {
	return &RemainingSteps{count: count}
}

// Step decrements the counter. There is no floor.
func (r *RemainingSteps) Step() {
	r.count--
}

// Done reports whether the counter is exactly zero. A counter that starts negative or is
// stepped past zero never reports done again.
func (r *RemainingSteps) Done() bool {
	return r.count == 0
}

func (r *RemainingSteps) Count() int {
	return r.count
}
