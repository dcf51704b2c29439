package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, DuelDone.IsTerminal())
	assert.True(t, DuelCancelled.IsTerminal())
	assert.False(t, DuelOpen.IsTerminal())
	assert.False(t, DuelActive.IsTerminal())
	assert.False(t, DuelPendingReview.IsTerminal())
}

func TestDuelTransitions(t *testing.T) {
	assert.True(t, CanTransition(DuelOpen, DuelActive))
	assert.True(t, CanTransition(DuelActive, DuelReported))
	assert.True(t, CanTransition(DuelReported, DuelPendingReview))
	assert.True(t, CanTransition(DuelPendingReview, DuelDone))
	assert.True(t, CanTransition(DuelActive, DuelCancelled))

	// Terminal states never move again.
	assert.False(t, CanTransition(DuelDone, DuelCancelled))
	assert.False(t, CanTransition(DuelCancelled, DuelOpen))
	// Review cannot be abandoned; only an admin ruling resolves it.
	assert.False(t, CanTransition(DuelPendingReview, DuelCancelled))
}

func TestTournamentTransitions(t *testing.T) {
	assert.True(t, CanTransitionTournament(TournamentOpen, TournamentLive))
	assert.True(t, CanTransitionTournament(TournamentLive, TournamentFinished))
	assert.False(t, CanTransitionTournament(TournamentOpen, TournamentFinished))
	assert.False(t, CanTransitionTournament(TournamentFinished, TournamentOpen))
}
