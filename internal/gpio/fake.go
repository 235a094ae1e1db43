package gpio

import "time"

// Segment is one constant-level stretch of a scripted waveform.
type Segment struct {
	Level    Level
	Duration time.Duration
}

// FakePin is a test double that replays a scripted waveform on a virtual
// clock. The waveform starts when SetInput is called; every Read advances
// the clock by Step. Now reports the virtual clock so timing code can be
// driven without real sleeps.
type FakePin struct {
	// Waveform is played back from the moment the pin enters input mode.
	Waveform []Segment

	// Idle is the level seen once the waveform is exhausted.
	Idle Level

	// Step is the virtual time consumed by each Read.
	Step time.Duration

	// Epoch is the virtual clock's origin.
	Epoch time.Time

	// SetOutputError, SetInputError and ReadError, if set, are returned
	// by the matching method.
	SetOutputError error
	SetInputError  error
	ReadError      error

	// Outputs records every level passed to SetOutput.
	Outputs []Level

	// Inputs counts SetInput calls.
	Inputs int

	// Reads counts Read calls.
	Reads int

	// Closed tracks if Close was called.
	Closed bool

	input   bool
	driven  Level
	clock   time.Duration
	started time.Duration
}

// NewFakePin creates a FakePin that idles high with a 1µs read step.
func NewFakePin(waveform []Segment) *FakePin {
	return &FakePin{
		Waveform: waveform,
		Idle:     High,
		Step:     time.Microsecond,
		Epoch:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		driven:   High,
	}
}

// SetOutput records the level and leaves input mode.
func (f *FakePin) SetOutput(level Level) error {
	if f.SetOutputError != nil {
		return f.SetOutputError
	}
	f.Outputs = append(f.Outputs, level)
	f.input = false
	f.driven = level
	return nil
}

// SetInput enters input mode and restarts waveform playback.
func (f *FakePin) SetInput() error {
	if f.SetInputError != nil {
		return f.SetInputError
	}
	f.Inputs++
	f.input = true
	f.started = f.clock
	return nil
}

// Read advances the virtual clock by Step and returns the level at the
// new time.
func (f *FakePin) Read() (Level, error) {
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	f.Reads++
	f.clock += f.Step
	if !f.input {
		return f.driven, nil
	}
	return f.levelAt(f.clock - f.started), nil
}

// Now returns the virtual clock.
func (f *FakePin) Now() time.Time {
	return f.Epoch.Add(f.clock)
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePin) levelAt(t time.Duration) Level {
	var end time.Duration
	for _, s := range f.Waveform {
		end += s.Duration
		if t < end {
			return s.Level
		}
	}
	return f.Idle
}
