package adc

import "errors"

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	// Values contains scripted readings. Each call to ReadRaw consumes the
	// next value; once exhausted the last value repeats.
	Values []uint16

	index int

	// ReadError, if set, will be returned by ReadRaw.
	ReadError error

	// Reads counts ReadRaw calls.
	Reads int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a FakeReader with the given values.
func NewFakeReader(values ...uint16) *FakeReader {
	return &FakeReader{Values: values}
}

// ReadRaw returns the next scripted value.
func (f *FakeReader) ReadRaw() (uint16, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Script replaces the scripted readings and restarts from the first one.
func (f *FakeReader) Script(values ...uint16) {
	f.Values = values
	f.index = 0
}
