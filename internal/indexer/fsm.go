package indexer

import (
	"context"

	"github.com/looplab/fsm"
)

// Indexer states.
const (
	StateApplying     = "applying"
	StateAdvancing    = "advancing"
	StateCaughtUpWait = "caught_up_wait"
	StateRetryBackoff = "retry_backoff"
)

// Indexer events.
const (
	EventApplied    = "applied"
	EventAdvance    = "advance"
	EventTipReached = "tip_reached"
	EventBlockReady = "block_ready"
	EventFail       = "fail"
	EventRetry      = "retry"
)

var allStates = []string{StateApplying, StateAdvancing, StateCaughtUpWait, StateRetryBackoff}

// newStateMachine builds the indexer state machine. It starts in
// applying, with the next height already derived from the cursor.
//
//	applying       --applied-->     advancing
//	applying       --tip_reached--> caught_up_wait
//	applying       --fail-->        retry_backoff
//	advancing      --advance-->     applying
//	caught_up_wait --block_ready--> applying
//	caught_up_wait --fail-->        retry_backoff
//	retry_backoff  --retry-->       applying
func newStateMachine(onEnter func(state string)) *fsm.FSM {
	return fsm.NewFSM(
		StateApplying,
		fsm.Events{
			{Name: EventApplied, Src: []string{StateApplying}, Dst: StateAdvancing},
			{Name: EventTipReached, Src: []string{StateApplying}, Dst: StateCaughtUpWait},
			{Name: EventFail, Src: []string{StateApplying, StateCaughtUpWait}, Dst: StateRetryBackoff},
			{Name: EventAdvance, Src: []string{StateAdvancing}, Dst: StateApplying},
			{Name: EventBlockReady, Src: []string{StateCaughtUpWait}, Dst: StateApplying},
			{Name: EventRetry, Src: []string{StateRetryBackoff}, Dst: StateApplying},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(e.Dst)
				}
			},
		},
	)
}
