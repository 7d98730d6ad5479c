package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"alligator-trader/internal/broker"
	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/models"
)

func newTestBroker() *broker.SimBroker {
	sim := broker.NewSimBroker(broker.SimBrokerConfig{
		InitialBalance: 1e9,
		Constraints: models.SymbolConstraints{
			MinLot:          0.01,
			MaxLot:          100,
			LotStep:         0.01,
			MinStopDistance: 5,
			FillModes:       []models.FillMode{models.FillModeFOK, models.FillModeIOC, models.FillModeReturn},
		},
	})
	sim.UpdatePrice("TESTUSD", 1000)
	return sim
}

func newTestManager(sim *broker.SimBroker) *Manager {
	return NewManager(ManagerConfig{
		Broker:          sim,
		Logger:          zerolog.Nop(),
		Symbol:          "TESTUSD",
		PrimaryFillMode: models.FillModeFOK,
		RetryInitial:    time.Millisecond,
		RetryMax:        2 * time.Millisecond,
		MaxAttempts:     2,
	})
}

func testPlan() *Plan {
	return &Plan{
		Symbol:     "TESTUSD",
		Side:       models.OrderSideBuy,
		Volume:     1,
		Entry:      1000,
		StopLoss:   990,
		TakeProfit: 1020,
	}
}

func TestOpenRecordsPosition(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	result, err := m.Open(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !result.Accepted || result.Reason != models.ReasonDone {
		t.Fatalf("unexpected result: %+v", result)
	}

	pos := m.Position()
	if pos == nil {
		t.Fatal("position should be recorded")
	}
	if pos.Direction != models.DirectionBullish || pos.Volume != 1 {
		t.Fatalf("unexpected position: %+v", pos)
	}
	if m.Counter().Count != 1 {
		t.Fatalf("counter = %d, want 1", m.Counter().Count)
	}
}

func TestOpenRefusesSecondPosition(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	if _, err := m.Open(context.Background(), testPlan()); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := m.Open(context.Background(), testPlan()); err == nil {
		t.Fatal("second Open should be refused while a position is tracked")
	}
}

func TestOpenWidensNarrowStops(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	plan := testPlan()
	plan.StopLoss = 998  // 2 below entry, min distance is 5
	plan.TakeProfit = 1003 // 3 above entry

	if _, err := m.Open(context.Background(), plan); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := m.Position()
	if pos.StopLoss != 995 {
		t.Errorf("stop loss = %v, want widened to 995", pos.StopLoss)
	}
	if pos.TakeProfit != 1005 {
		t.Errorf("take profit = %v, want widened to 1005", pos.TakeProfit)
	}
}

func TestOpenLeavesWideStopsAlone(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	plan := testPlan() // SL 990, TP 1020, both beyond the 5 minimum

	if _, err := m.Open(context.Background(), plan); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pos := m.Position()
	if pos.StopLoss != 990 || pos.TakeProfit != 1020 {
		t.Errorf("stops should be untouched, got SL=%v TP=%v", pos.StopLoss, pos.TakeProfit)
	}
}

func TestOpenFillModeCascade(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	// The primary mode is refused as unsupported; the cascade advances and
	// the order fills on the next mode.
	sim.ScriptRejects(models.ReasonUnsupportedFill)

	result, err := m.Open(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("order should fill after the cascade, got %+v", result)
	}
}

func TestOpenRetriesTransientRejections(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	// A requote and a price change, then the order goes through on the same
	// fill mode.
	sim.ScriptRejects(models.ReasonRequote, models.ReasonPriceChanged)

	result, err := m.Open(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("order should fill after retries, got %+v", result)
	}
}

func TestOpenSurfacesHardRejection(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	sim.ScriptRejects(models.ReasonNoMoney)

	_, err := m.Open(context.Background(), testPlan())
	if err == nil {
		t.Fatal("hard rejection should surface as an error")
	}
	if !apperrors.Is(err, apperrors.ErrOrderRejected) {
		t.Fatalf("error should wrap ErrOrderRejected, got %v", err)
	}
	var orderErr *apperrors.OrderError
	if !apperrors.As(err, &orderErr) {
		t.Fatalf("error should be an OrderError, got %T", err)
	}
	if orderErr.Reason != string(models.ReasonNoMoney) {
		t.Fatalf("reason = %q, want NO_MONEY", orderErr.Reason)
	}
	if m.Position() != nil {
		t.Fatal("no position should be recorded on rejection")
	}
}

func TestOpenExhaustsCascade(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	// Every advertised mode is refused.
	sim.ScriptRejects(
		models.ReasonUnsupportedFill,
		models.ReasonUnsupportedFill,
		models.ReasonUnsupportedFill,
	)

	if _, err := m.Open(context.Background(), testPlan()); err == nil {
		t.Fatal("exhausted cascade should surface as an error")
	}
	if m.Position() != nil {
		t.Fatal("no position should be recorded")
	}
}

func TestCloseCurrent(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	if _, err := m.Open(context.Background(), testPlan()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.CloseCurrent(context.Background()); err != nil {
		t.Fatalf("CloseCurrent: %v", err)
	}
	if m.Position() != nil {
		t.Fatal("position should be cleared after close")
	}
	if sim.OpenPositionCount() != 0 {
		t.Fatal("broker should report no open positions")
	}

	if err := m.CloseCurrent(context.Background()); !apperrors.Is(err, apperrors.ErrPositionNotFound) {
		t.Fatalf("closing without a position should return ErrPositionNotFound, got %v", err)
	}
}

func TestRefreshPositionClearsStoppedOut(t *testing.T) {
	sim := newTestBroker()
	m := newTestManager(sim)

	if _, err := m.Open(context.Background(), testPlan()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Price sweeps through the stop; the broker closes the position and the
	// next refresh clears the local record.
	sim.UpdatePrice("TESTUSD", 980)

	pos, err := m.RefreshPosition(context.Background())
	if err != nil {
		t.Fatalf("RefreshPosition: %v", err)
	}
	if pos != nil || m.Position() != nil {
		t.Fatal("stopped-out position should be cleared")
	}
}
