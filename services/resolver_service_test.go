package services

import (
	"testing"
	"time"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolverFixture(t *testing.T) (*DuelService, *ResolverService, *WalletService) {
	t.Helper()
	db := newTestDB(t)
	wallet := NewWalletService(db)
	duels := NewDuelService(db, wallet, fixedProvider{}, nil, time.Minute, 0.1)
	resolver := NewResolverService(db, wallet, NewRatingService(db))
	return duels, resolver, wallet
}

func activeDuel(t *testing.T, duels *DuelService, wallet *WalletService, stake float64) *models.Duel {
	t.Helper()
	fund(t, wallet, "alice", 100)
	fund(t, wallet, "bob", 100)
	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: stake, Currency: "USD"})
	require.NoError(t, err)
	duel, err = duels.JoinDuel("bob", duel.ID, 0)
	require.NoError(t, err)
	return duel
}

func TestConsistentReportsFinalizeDuel(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	d, err := resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelReported, d.Status)

	d, err = resolver.ReportDuel("bob", duel.ID, models.ReportLose)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, d.Status)
	require.NotNil(t, d.WinnerUserID)
	assert.Equal(t, "alice", *d.WinnerUserID)
	assert.Equal(t, models.ResultSourceReports, d.ResultSource)
	require.NotNil(t, d.EndedAt)

	// Pool of 20 minus 10% rake pays 18 to the winner; the rake stays with
	// the house, and no escrow lingers anywhere.
	alice := balanceOf(t, wallet, "alice")
	bob := balanceOf(t, wallet, "bob")
	house := balanceOf(t, wallet, models.HouseUserID)
	assert.Equal(t, 108.0, alice.Balance)
	assert.Equal(t, 0.0, alice.Escrowed)
	assert.Equal(t, 90.0, bob.Balance)
	assert.Equal(t, 0.0, bob.Escrowed)
	assert.Equal(t, 2.0, house.Balance)
	assert.Equal(t, 200.0, alice.Balance+bob.Balance+house.Balance)
}

func TestConsistentReportsApplyRatings(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	_, err = resolver.ReportDuel("bob", duel.ID, models.ReportLose)
	require.NoError(t, err)

	var winner, loser models.Rating
	require.NoError(t, resolver.DB.First(&winner, "user_id = ?", "alice").Error)
	require.NoError(t, resolver.DB.First(&loser, "user_id = ?", "bob").Error)
	assert.Equal(t, models.RatingBaseline+models.RatingWinDelta, winner.Points)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, models.RatingBaseline+models.RatingLossDelta, loser.Points)
	assert.Equal(t, 1, loser.Losses)
}

func TestInconsistentReportsGoToReview(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	d, err := resolver.ReportDuel("bob", duel.ID, models.ReportWin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelPendingReview, d.Status)

	// Money stays in escrow until an admin rules.
	alice := balanceOf(t, wallet, "alice")
	assert.Equal(t, 10.0, alice.Escrowed)
}

func TestAdminFinalizeResolvesReview(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	_, err = resolver.ReportDuel("bob", duel.ID, models.ReportWin)
	require.NoError(t, err)

	d, err := resolver.FinalizeDuel(duel.ID, "bob", models.ResultSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, d.Status)
	assert.Equal(t, models.ResultSourceAdmin, d.ResultSource)
	require.NotNil(t, d.WinnerUserID)
	assert.Equal(t, "bob", *d.WinnerUserID)

	bob := balanceOf(t, wallet, "bob")
	assert.Equal(t, 108.0, bob.Balance)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	_, err = resolver.ReportDuel("bob", duel.ID, models.ReportLose)
	require.NoError(t, err)

	// Late or repeated inputs after settlement change nothing.
	d, err := resolver.ReportDuel("bob", duel.ID, models.ReportWin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, d.Status)
	d, err = resolver.FinalizeDuel(duel.ID, "bob", models.ResultSourceAdmin)
	require.NoError(t, err)
	require.NotNil(t, d.WinnerUserID)
	assert.Equal(t, "alice", *d.WinnerUserID, "settled winner is immutable")

	alice := balanceOf(t, wallet, "alice")
	assert.Equal(t, 108.0, alice.Balance, "no double payout")
}

func TestTeamDuelResolvesOnCaptainPair(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	for _, u := range []string{"a1", "a2", "b1", "b2"} {
		fund(t, wallet, u, 100)
	}

	duel, err := duels.CreateDuel("a1", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD", TeamSize: 2})
	require.NoError(t, err)
	_, err = duels.JoinDuel("b1", duel.ID, 2)
	require.NoError(t, err)
	_, err = duels.JoinDuel("a2", duel.ID, 1)
	require.NoError(t, err)
	d, err := duels.JoinDuel("b2", duel.ID, 2)
	require.NoError(t, err)
	require.Equal(t, models.DuelActive, d.Status)

	// A non-captain report is recorded but does not count toward resolution.
	d, err = resolver.ReportDuel("a2", duel.ID, models.ReportWin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelReported, d.Status)
	d, err = resolver.ReportDuel("b2", duel.ID, models.ReportLose)
	require.NoError(t, err)
	assert.Equal(t, models.DuelReported, d.Status)

	// The captains (first player on each side) settle it.
	d, err = resolver.ReportDuel("a1", duel.ID, models.ReportWin)
	require.NoError(t, err)
	assert.Equal(t, models.DuelReported, d.Status)
	d, err = resolver.ReportDuel("b1", duel.ID, models.ReportLose)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, d.Status)
	require.NotNil(t, d.WinnerTeam)
	assert.Equal(t, 1, *d.WinnerTeam)
	require.NotNil(t, d.WinnerUserID)
	assert.Equal(t, "a1", *d.WinnerUserID)

	// Pool of 40 minus 10% rake splits 18 per winning-team member; every
	// escrow is drained and the books balance across all five accounts.
	total := 0.0
	for _, u := range []string{"a1", "a2"} {
		acct := balanceOf(t, wallet, u)
		assert.Equal(t, 108.0, acct.Balance)
		assert.Equal(t, 0.0, acct.Escrowed)
		total += acct.Balance
	}
	for _, u := range []string{"b1", "b2"} {
		acct := balanceOf(t, wallet, u)
		assert.Equal(t, 90.0, acct.Balance)
		assert.Equal(t, 0.0, acct.Escrowed)
		total += acct.Balance
	}
	house := balanceOf(t, wallet, models.HouseUserID)
	assert.Equal(t, 4.0, house.Balance)
	assert.Equal(t, 400.0, total+house.Balance)

	// Ratings applied exactly once per participant.
	for _, c := range []struct {
		user   string
		points float64
		wins   int
		losses int
	}{
		{"a1", models.RatingBaseline + models.RatingWinDelta, 1, 0},
		{"a2", models.RatingBaseline + models.RatingWinDelta, 1, 0},
		{"b1", models.RatingBaseline + models.RatingLossDelta, 0, 1},
		{"b2", models.RatingBaseline + models.RatingLossDelta, 0, 1},
	} {
		var r models.Rating
		require.NoError(t, resolver.DB.First(&r, "user_id = ?", c.user).Error)
		assert.Equal(t, c.points, r.Points, c.user)
		assert.Equal(t, c.wins, r.Wins, c.user)
		assert.Equal(t, c.losses, r.Losses, c.user)
		assert.Equal(t, 1, r.Matches, c.user)
	}
}

func TestRepeatReportFromSameUserReplaces(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("alice", duel.ID, models.ReportLose)
	require.NoError(t, err)
	// Fat-fingered, corrected before the opponent reported.
	_, err = resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)

	d, err := resolver.ReportDuel("bob", duel.ID, models.ReportLose)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, d.Status)
	assert.Equal(t, "alice", *d.WinnerUserID)
}

func TestReportRejectsOutsiders(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	duel := activeDuel(t, duels, wallet, 10)

	_, err := resolver.ReportDuel("mallory", duel.ID, models.ReportWin)
	requireEngineCode(t, err, CodeForbidden)

	_, err = resolver.FinalizeDuel(duel.ID, "mallory", models.ResultSourceAdmin)
	requireEngineCode(t, err, CodeValidation)
}

func TestReportOnOpenDuelConflicts(t *testing.T) {
	duels, resolver, wallet := newResolverFixture(t)
	fund(t, wallet, "alice", 100)
	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)

	_, err = resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	requireEngineCode(t, err, CodeConflict)
}
