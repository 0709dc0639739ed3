package servo

// FakeActuator records every angle written to it.
type FakeActuator struct {
	Angles   []int
	SetError error
	Closed   bool
}

// NewFakeActuator creates an empty FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// SetAngle records deg, or returns SetError if set.
func (f *FakeActuator) SetAngle(deg int) error {
	if f.SetError != nil {
		return f.SetError
	}
	if _, err := PulseWidth(deg); err != nil {
		return err
	}
	f.Angles = append(f.Angles, deg)
	return nil
}

// Current returns the last angle written, or -1 if none.
func (f *FakeActuator) Current() int {
	if len(f.Angles) == 0 {
		return -1
	}
	return f.Angles[len(f.Angles)-1]
}

// Close marks the actuator closed.
func (f *FakeActuator) Close() error {
	f.Closed = true
	return nil
}
