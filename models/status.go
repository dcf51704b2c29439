package models

// Status values for duels and bracket matches. Transitions are validated
// centrally via CanTransition so every mutation site proves its move is legal.
type DuelStatus string

const (
	DuelOpen          DuelStatus = "open"
	DuelActive        DuelStatus = "active"
	DuelInProgress    DuelStatus = "in_progress" // bracket matches only
	DuelReported      DuelStatus = "reported"
	DuelPendingReview DuelStatus = "pending_review"
	DuelDone          DuelStatus = "done"
	DuelCancelled     DuelStatus = "cancelled"
)

// IsTerminal reports whether no further state change is allowed.
func (s DuelStatus) IsTerminal() bool {
	return s == DuelDone || s == DuelCancelled
}

var duelTransitions = map[DuelStatus][]DuelStatus{
	DuelOpen:          {DuelActive, DuelInProgress, DuelReported, DuelCancelled},
	DuelActive:        {DuelReported, DuelPendingReview, DuelDone, DuelCancelled},
	DuelInProgress:    {DuelReported, DuelPendingReview, DuelDone},
	DuelReported:      {DuelReported, DuelPendingReview, DuelDone},
	DuelPendingReview: {DuelDone},
}

// CanTransition reports whether from -> to is a legal duel/match move.
func CanTransition(from, to DuelStatus) bool {
	for _, next := range duelTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ResolvableDuelStatuses are the duel states from which a winner may still be
// set. An open duel has no opponent yet and is never resolvable.
func ResolvableDuelStatuses() []DuelStatus {
	return []DuelStatus{DuelActive, DuelReported, DuelPendingReview}
}

// ResolvableMatchStatuses are the bracket-match states a winner may be set
// from; matches need no join phase, so open counts.
func ResolvableMatchStatuses() []DuelStatus {
	return []DuelStatus{DuelOpen, DuelInProgress, DuelReported, DuelPendingReview}
}

type TournamentStatus string

const (
	TournamentOpen     TournamentStatus = "open"
	TournamentLive     TournamentStatus = "live"
	TournamentFinished TournamentStatus = "finished"
)

// Tournament status only moves forward: open -> live -> finished.
func CanTransitionTournament(from, to TournamentStatus) bool {
	switch from {
	case TournamentOpen:
		return to == TournamentLive
	case TournamentLive:
		return to == TournamentFinished
	}
	return false
}

// Cancel reasons written by the timeout sweeper.
const (
	CancelNoAcceptTimeout = "no-accept-timeout"
	CancelReadyTimeout    = "ready-timeout"
)

// Result sources for finalized duels and matches.
const (
	ResultSourceReports = "reports"
	ResultSourceServer  = "server"
	ResultSourceAdmin   = "admin"
)
