package regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testThresholds() Thresholds {
	return Thresholds{
		MaxLineSlopeDegrees:    10,
		MaxLineSpreadDollars:   5,
		DivergenceSlopeDegrees: 15,
		MinMeaningfulSlope:     5,
	}
}

func newTestClassifier() *Classifier {
	return NewClassifier("TESTUSD", testThresholds(), zerolog.Nop())
}

// sleepingObs: flat lines stacked within the spread threshold.
func sleepingObs(at time.Time) Observation {
	return Observation{
		Jaw: 100, Teeth: 101, Lips: 102,
		PrevJaw: 100, PrevTeeth: 101, PrevLips: 102,
		Price:        101,
		LookbackBars: 2,
		BarDuration:  time.Hour,
		Time:         at,
	}
}

// bullishObs: price above fanned-out rising lines, lines diverging hard.
func bullishObs(at time.Time) Observation {
	return Observation{
		Jaw: 100, Teeth: 110, Lips: 120,
		PrevJaw: 100, PrevTeeth: 105, PrevLips: 110,
		Price:        130,
		LookbackBars: 2,
		BarDuration:  time.Hour,
		Time:         at,
	}
}

func TestClassifySleeping(t *testing.T) {
	c := newTestClassifier()
	st := c.Classify(sleepingObs(time.Now()))

	if !st.Sleeping {
		t.Fatal("flat close lines should classify as sleeping")
	}
	if !st.Horizontal {
		t.Fatal("flat lines should classify as horizontal")
	}
	if st.Awake() || st.Diverging {
		t.Fatalf("sleeping regime should not be awake or diverging: %+v", st)
	}
}

func TestClassifyBullishAwake(t *testing.T) {
	c := newTestClassifier()
	st := c.Classify(bullishObs(time.Now()))

	if !st.BullishAwake {
		t.Fatalf("expected bullish awake, got %+v", st)
	}
	if st.Sleeping {
		t.Fatal("awake vetoes sleeping")
	}
	if !st.Diverging {
		t.Fatal("fanned-out lines should classify as diverging")
	}
}

func TestClassifyBearishAwake(t *testing.T) {
	c := newTestClassifier()
	st := c.Classify(Observation{
		Jaw: 120, Teeth: 110, Lips: 100,
		PrevJaw: 120, PrevTeeth: 115, PrevLips: 110,
		Price:        90,
		LookbackBars: 2,
		BarDuration:  time.Hour,
		Time:         time.Now(),
	})

	if !st.BearishAwake {
		t.Fatalf("expected bearish awake, got %+v", st)
	}
	if st.BullishAwake {
		t.Fatal("regimes are mutually exclusive")
	}
}

func TestClassifyWrongStackingIsNotAwake(t *testing.T) {
	c := newTestClassifier()
	// Diverging lines, but price below the lips: no awake call.
	obs := bullishObs(time.Now())
	obs.Price = 115
	st := c.Classify(obs)

	if st.Awake() {
		t.Fatalf("price below lips should not be awake: %+v", st)
	}
}

func TestClassifySpreadLinesNotSleeping(t *testing.T) {
	c := newTestClassifier()
	// Horizontal but spread wider than the threshold.
	st := c.Classify(Observation{
		Jaw: 100, Teeth: 104, Lips: 110,
		PrevJaw: 100, PrevTeeth: 104, PrevLips: 110,
		Price:        105,
		LookbackBars: 2,
		BarDuration:  time.Hour,
		Time:         time.Now(),
	})

	if st.Sleeping {
		t.Fatal("spread lines should not classify as sleeping")
	}
	if !st.Horizontal {
		t.Fatal("flat spread lines are still horizontal")
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := newTestClassifier()
	obs := bullishObs(time.Now())

	first := c.Classify(obs)
	second := c.Classify(obs)
	if first != second {
		t.Fatalf("Classify mutated state: %+v vs %+v", first, second)
	}
}

func TestUpdatePreservesSleepStart(t *testing.T) {
	c := newTestClassifier()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	st := c.Update(sleepingObs(start))
	if st.SleepStart != start {
		t.Fatalf("sleep start = %v, want %v", st.SleepStart, start)
	}

	// Continued sleep keeps the original start time.
	later := start.Add(30 * time.Minute)
	st = c.Update(sleepingObs(later))
	if st.SleepStart != start {
		t.Fatalf("sleep start moved to %v on steady state", st.SleepStart)
	}
	if got := st.SleepingFor(later); got != 30*time.Minute {
		t.Fatalf("SleepingFor = %v, want 30m", got)
	}

	// Waking resets; a fresh sleep restarts the clock.
	c.Update(bullishObs(later.Add(time.Minute)))
	again := later.Add(time.Hour)
	st = c.Update(sleepingObs(again))
	if st.SleepStart != again {
		t.Fatalf("fresh sleep start = %v, want %v", st.SleepStart, again)
	}
}

func TestSleepingForWhenNotSleeping(t *testing.T) {
	var st State
	if got := st.SleepingFor(time.Now()); got != 0 {
		t.Fatalf("SleepingFor on zero state = %v, want 0", got)
	}
}
