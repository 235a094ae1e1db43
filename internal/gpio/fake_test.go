package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestFakePinPlaysWaveform(t *testing.T) {
	f := NewFakePin([]Segment{
		{Level: Low, Duration: 3 * time.Microsecond},
		{Level: High, Duration: 2 * time.Microsecond},
	})

	if err := f.SetInput(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Each read advances 1µs: t=1,2 low; t=3,4 high; t=5 idle high
	want := []Level{Low, Low, High, High, High}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got %s, want %s", i, got, w)
		}
	}
}

func TestFakePinIdleLevel(t *testing.T) {
	f := NewFakePin(nil)
	f.Idle = Low
	f.SetInput()

	got, _ := f.Read()
	if got != Low {
		t.Errorf("got %s, want LOW", got)
	}
}

func TestFakePinOutputMode(t *testing.T) {
	f := NewFakePin([]Segment{{Level: High, Duration: time.Hour}})

	if err := f.SetOutput(Low); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.Read()
	if got != Low {
		t.Errorf("output mode: got %s, want driven LOW", got)
	}
	if len(f.Outputs) != 1 || f.Outputs[0] != Low {
		t.Errorf("Outputs: got %v, want [LOW]", f.Outputs)
	}
}

func TestFakePinWaveformRestartsOnSetInput(t *testing.T) {
	f := NewFakePin([]Segment{{Level: Low, Duration: 2 * time.Microsecond}})

	f.SetInput()
	f.Read()
	f.Read()
	if got, _ := f.Read(); got != High {
		t.Fatalf("after waveform: got %s, want HIGH", got)
	}

	f.SetOutput(High)
	f.SetInput()
	if got, _ := f.Read(); got != Low {
		t.Errorf("after restart: got %s, want LOW", got)
	}
	if f.Inputs != 2 {
		t.Errorf("Inputs: got %d, want 2", f.Inputs)
	}
}

func TestFakePinClockAdvancesPerRead(t *testing.T) {
	f := NewFakePin(nil)
	f.Step = 5 * time.Microsecond
	start := f.Now()

	for i := 0; i < 4; i++ {
		f.Read()
	}

	if got := f.Now().Sub(start); got != 20*time.Microsecond {
		t.Errorf("elapsed: got %v, want 20µs", got)
	}
	if f.Reads != 4 {
		t.Errorf("Reads: got %d, want 4", f.Reads)
	}
}

func TestFakePinErrors(t *testing.T) {
	f := NewFakePin(nil)
	f.SetOutputError = errors.New("out")
	f.SetInputError = errors.New("in")
	f.ReadError = errors.New("read")

	if err := f.SetOutput(High); err == nil || err.Error() != "out" {
		t.Errorf("SetOutput: got %v, want out", err)
	}
	if err := f.SetInput(); err == nil || err.Error() != "in" {
		t.Errorf("SetInput: got %v, want in", err)
	}
	if _, err := f.Read(); err == nil || err.Error() != "read" {
		t.Errorf("Read: got %v, want read", err)
	}
}

func TestFakePinClose(t *testing.T) {
	f := NewFakePin(nil)

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestLevelString(t *testing.T) {
	if High.String() != "HIGH" {
		t.Errorf("High: got %q", High.String())
	}
	if Low.String() != "LOW" {
		t.Errorf("Low: got %q", Low.String())
	}
}
