package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"alligator-trader/internal/models"
)

func flatCandles(n int, price float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
	}
	return candles
}

func TestAlligatorFlatSeries(t *testing.T) {
	a := NewAlligator()
	candles := flatCandles(a.RequiredBars()+10, 500)

	result, err := a.Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// A constant price collapses all three lines onto the price itself.
	jaw, teeth, lips := result.Current()
	for name, v := range map[string]float64{"jaw": jaw, "teeth": teeth, "lips": lips} {
		if math.Abs(v-500) > 1e-9 {
			t.Errorf("%s on flat series = %v, want 500", name, v)
		}
	}
}

func TestAlligatorShiftAlignment(t *testing.T) {
	a := NewAlligator()
	candles := syntheticCandles(a.RequiredBars()+50, 11)

	result, err := a.Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// The jaw at bar i must be the unshifted SMMA from JawShift bars back.
	unshifted := smma(medianPrices(candles), a.JawPeriod)
	for i := result.FirstUsable(); i < len(candles); i++ {
		if result.Jaw[i] != unshifted[i-a.JawShift] {
			t.Fatalf("jaw at %d not aligned: got %v want %v", i, result.Jaw[i], unshifted[i-a.JawShift])
		}
	}
}

func TestAlligatorSMMASeed(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10, 12}
	out := smma(values, 5)

	// Seed is the simple average of the first period samples.
	if out[4] != 6 {
		t.Fatalf("seed = %v, want 6", out[4])
	}
	// Next value follows (prev*(p-1) + v) / p.
	want := (6*4 + 12) / 5.0
	if out[5] != want {
		t.Fatalf("smma[5] = %v, want %v", out[5], want)
	}
	// Entries before the seed stay zero.
	for i := 0; i < 4; i++ {
		if out[i] != 0 {
			t.Fatalf("smma[%d] = %v, want 0", i, out[i])
		}
	}
}

func TestAlligatorRequiredBars(t *testing.T) {
	a := NewAlligator()
	if got := a.RequiredBars(); got != 21 {
		t.Fatalf("RequiredBars = %d, want 21", got)
	}

	if _, err := a.Calculate(flatCandles(20, 100)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := a.Calculate(flatCandles(21, 100)); err != nil {
		t.Fatalf("21 bars should compute: %v", err)
	}
}

func TestAlligatorLineOrderingOnTrend(t *testing.T) {
	a := NewAlligator()
	n := a.RequiredBars() + 100
	candles := make([]models.Candle, n)
	price := 100.0
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 2,
			Low:       price,
			Close:     price + 2,
		}
		price += 2
	}

	result, err := a.Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// On a sustained uptrend the faster, less-shifted line runs above the
	// slower ones: lips > teeth > jaw.
	jaw, teeth, lips := result.Current()
	if !(lips > teeth && teeth > jaw) {
		t.Fatalf("expected lips > teeth > jaw on uptrend, got jaw=%v teeth=%v lips=%v", jaw, teeth, lips)
	}
}
