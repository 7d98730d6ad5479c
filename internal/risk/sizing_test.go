package risk

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"alligator-trader/internal/models"
)

func testConstraints() *models.SymbolConstraints {
	return &models.SymbolConstraints{
		Symbol:  "TESTUSD",
		MinLot:  0.01,
		MaxLot:  100,
		LotStep: 0.01,
	}
}

func TestSizeBasicRisk(t *testing.T) {
	s := &Sizer{
		RiskPercent:       2,
		RewardRatio:       2,
		ATRStopMultiplier: 1,
	}

	// 2% of $10k is $200 at risk; ATR $100 gives a $100 stop, so 2 units.
	sizing, err := s.Size(10000, 5000, 100, models.DirectionBullish, testConstraints())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}

	if sizing.RiskAmount != 200 {
		t.Errorf("risk amount = %v, want 200", sizing.RiskAmount)
	}
	if sizing.StopDistance != 100 {
		t.Errorf("stop distance = %v, want 100", sizing.StopDistance)
	}
	if sizing.Volume != 2 {
		t.Errorf("volume = %v, want 2", sizing.Volume)
	}
	if sizing.StopLoss != 4900 {
		t.Errorf("stop loss = %v, want 4900", sizing.StopLoss)
	}
	if sizing.TakeProfit != 5200 {
		t.Errorf("take profit = %v, want 5200", sizing.TakeProfit)
	}
}

func TestSizeBearishLevels(t *testing.T) {
	s := &Sizer{
		RiskPercent:       1,
		RewardRatio:       3,
		ATRStopMultiplier: 2,
	}

	sizing, err := s.Size(10000, 1000, 10, models.DirectionBearish, testConstraints())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}

	// Stop 20 above entry, target 60 below.
	if sizing.StopLoss != 1020 {
		t.Errorf("stop loss = %v, want 1020", sizing.StopLoss)
	}
	if sizing.TakeProfit != 940 {
		t.Errorf("take profit = %v, want 940", sizing.TakeProfit)
	}
}

func TestSizeFixedStopFallback(t *testing.T) {
	s := &Sizer{
		RiskPercent:      2,
		RewardRatio:      2,
		FixedStopDollars: 50,
	}

	sizing, err := s.Size(10000, 5000, 0, models.DirectionBullish, testConstraints())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if sizing.StopDistance != 50 {
		t.Errorf("stop distance = %v, want the fixed 50", sizing.StopDistance)
	}
}

func TestSizeNotionalClamp(t *testing.T) {
	s := &Sizer{
		RiskPercent:         2,
		RewardRatio:         2,
		ATRStopMultiplier:   1,
		MaxNotionalFraction: 0.5,
	}

	// Tiny ATR stop would size 2000 units; the clamp caps notional at half
	// the balance: 10000*0.5/100 = 50 units.
	sizing, err := s.Size(10000, 100, 0.1, models.DirectionBullish, testConstraints())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if sizing.Volume != 50 {
		t.Errorf("volume = %v, want clamped 50", sizing.Volume)
	}
	// The reported risk follows the clamped size: 50 units over a $0.10 stop.
	if sizing.RiskAmount != 5 {
		t.Errorf("risk amount = %v, want 5", sizing.RiskAmount)
	}
}

func TestSizeLotRounding(t *testing.T) {
	s := &Sizer{
		RiskPercent:       1,
		RewardRatio:       2,
		ATRStopMultiplier: 1,
	}
	constraints := testConstraints()
	constraints.LotStep = 0.1

	// $100 risk over a $33 stop is 3.0303 units; rounds to 3.0.
	sizing, err := s.Size(10000, 1000, 33, models.DirectionBullish, constraints)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if sizing.Volume != 3.0 {
		t.Errorf("volume = %v, want 3.0", sizing.Volume)
	}
}

func TestSizeMinLotFloor(t *testing.T) {
	s := &Sizer{
		RiskPercent:       0.1,
		RewardRatio:       2,
		ATRStopMultiplier: 1,
	}

	// Sized volume rounds to zero; clamp to the minimum lot.
	sizing, err := s.Size(100, 1000, 500, models.DirectionBullish, testConstraints())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if sizing.Volume != 0.01 {
		t.Errorf("volume = %v, want min lot 0.01", sizing.Volume)
	}
}

func TestSizeInvalidInputs(t *testing.T) {
	s := &Sizer{RiskPercent: 2, RewardRatio: 2, ATRStopMultiplier: 1}

	if _, err := s.Size(0, 1000, 10, models.DirectionBullish, testConstraints()); err == nil {
		t.Error("zero balance should error")
	}
	if _, err := s.Size(1000, 0, 10, models.DirectionBullish, testConstraints()); err == nil {
		t.Error("zero entry should error")
	}
	if _, err := s.Size(1000, 100, 0, models.DirectionBullish, testConstraints()); err == nil {
		t.Error("no resolvable stop distance should error")
	}
}

// Property: the notional never exceeds the configured fraction of the
// balance (beyond one lot step of rounding slack), and SL/TP always bracket
// the entry on the correct sides with the configured reward ratio.
func TestProperty_SizeRespectsLimits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("notional clamp and level geometry hold", prop.ForAll(
		func(balance, entry, atr float64, bearish bool) bool {
			s := &Sizer{
				RiskPercent:         2,
				RewardRatio:         2,
				ATRStopMultiplier:   1.5,
				MaxNotionalFraction: 0.5,
			}
			constraints := testConstraints()

			dir := models.DirectionBullish
			if bearish {
				dir = models.DirectionBearish
			}

			sizing, err := s.Size(balance, entry, atr, dir, constraints)
			if err != nil {
				return false
			}

			// Rounding to the lot step and the min-lot floor can add at most
			// one step of notional past the cap.
			maxNotional := balance*s.MaxNotionalFraction + (constraints.LotStep+constraints.MinLot)*entry
			if sizing.Volume*entry > maxNotional {
				return false
			}

			if dir == models.DirectionBullish {
				if sizing.StopLoss >= entry || sizing.TakeProfit <= entry {
					return false
				}
			} else {
				if sizing.StopLoss <= entry || sizing.TakeProfit >= entry {
					return false
				}
			}

			// TP distance is the reward multiple of the stop distance.
			tpDist := math.Abs(sizing.TakeProfit - entry)
			slDist := math.Abs(sizing.StopLoss - entry)
			return math.Abs(tpDist-slDist*s.RewardRatio) < 1e-6*entry
		},
		gen.Float64Range(1000, 1e6),
		gen.Float64Range(10, 1e5),
		gen.Float64Range(0.1, 500),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
