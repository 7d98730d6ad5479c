package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"alligator-trader/internal/models"
)

func TestATRKnownValues(t *testing.T) {
	atr := NewATR(3)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Timestamp: base, Open: 100, High: 104, Low: 100, Close: 102},
		{Timestamp: base.Add(time.Hour), Open: 102, High: 105, Low: 101, Close: 104},
		{Timestamp: base.Add(2 * time.Hour), Open: 104, High: 108, Low: 103, Close: 107},
		{Timestamp: base.Add(3 * time.Hour), Open: 107, High: 109, Low: 105, Close: 106},
	}

	values, err := atr.Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// TR: 4 (high-low), 4 (105-101), 5 (108-103), 4 (109-105).
	// Seed = (4+4+5)/3, then Wilder: (seed*2 + 4) / 3.
	seed := (4.0 + 4.0 + 5.0) / 3.0
	want := (seed*2 + 4) / 3
	if math.Abs(values[3]-want) > 1e-12 {
		t.Fatalf("ATR = %v, want %v", values[3], want)
	}
}

func TestATRConstantRange(t *testing.T) {
	atr := NewATR(14)
	n := atr.RequiredBars() + 20
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Open:      100,
			High:      103,
			Low:       100,
			Close:     100,
		}
	}

	got, err := atr.Current(candles)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if math.Abs(got-3) > 1e-9 {
		t.Fatalf("ATR on constant range = %v, want 3", got)
	}
}

func TestATRInsufficientHistory(t *testing.T) {
	atr := NewATR(14)
	if _, err := atr.Calculate(flatCandles(atr.RequiredBars()-1, 100)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSlopeAngle(t *testing.T) {
	// A 1% move in one hour is atan(1) = 45 degrees.
	got := SlopeAngle(100, 101, time.Hour)
	if math.Abs(got-45) > 1e-9 {
		t.Fatalf("SlopeAngle(100, 101, 1h) = %v, want 45", got)
	}

	// Downward moves are negative.
	if got := SlopeAngle(100, 99, time.Hour); got >= 0 {
		t.Fatalf("downward slope should be negative, got %v", got)
	}

	// Degenerate inputs resolve to zero instead of NaN.
	if got := SlopeAngle(0, 101, time.Hour); got != 0 {
		t.Fatalf("zero base should yield 0, got %v", got)
	}
	if got := SlopeAngle(100, 101, 0); got != 0 {
		t.Fatalf("zero elapsed should yield 0, got %v", got)
	}

	// Bars form: 2 bars of 30m equals one hour of elapsed time.
	bars := SlopeAngleBars(100, 101, 2, 30*time.Minute)
	if math.Abs(bars-45) > 1e-9 {
		t.Fatalf("SlopeAngleBars = %v, want 45", bars)
	}
}
