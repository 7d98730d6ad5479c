// Package strategy implements the breakout signal state machine: the
// sleep, monitor, breakout, confirm, manage and exit lifecycle driven by
// regime classification over the alligator lines.
package strategy

// Phase is the lifecycle state of the strategy engine.
type Phase int

const (
	// PhaseSleeping: lines are horizontal and close; the sleep timer runs.
	PhaseSleeping Phase = iota
	// PhaseReadyToMonitor: slept long enough, about to start watching.
	PhaseReadyToMonitor
	// PhaseMonitoringBreakout: tracking a potential breakout episode.
	PhaseMonitoringBreakout
	// PhaseTradeExecuted: order filled, waiting for the mouth to open.
	PhaseTradeExecuted
	// PhasePositionActive: trend confirmed, managing the open position.
	PhasePositionActive
	// PhaseWaitingForSleep: cooldown until the lines go horizontal again.
	PhaseWaitingForSleep
)

func (p Phase) String() string {
	switch p {
	case PhaseSleeping:
		return "SLEEPING"
	case PhaseReadyToMonitor:
		return "READY_TO_MONITOR"
	case PhaseMonitoringBreakout:
		return "MONITORING_BREAKOUT"
	case PhaseTradeExecuted:
		return "TRADE_EXECUTED"
	case PhasePositionActive:
		return "POSITION_ACTIVE"
	case PhaseWaitingForSleep:
		return "WAITING_FOR_SLEEP"
	default:
		return "UNKNOWN"
	}
}
