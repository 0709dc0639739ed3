package env

// FakeSensor returns a fixed reading.
type FakeSensor struct {
	Reading Reading
	Reads   int
	Closed  bool
}

// NewFakeSensor creates a FakeSensor returning r.
func NewFakeSensor(r Reading) *FakeSensor {
	return &FakeSensor{Reading: r}
}

// Sense returns the configured reading.
func (f *FakeSensor) Sense() Reading {
	f.Reads++
	return f.Reading
}

// Close marks the sensor closed.
func (f *FakeSensor) Close() error {
	f.Closed = true
	return nil
}
