package services

import (
	"testing"
	"time"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeperFixture(t *testing.T) (*DuelService, *Sweeper, *WalletService) {
	t.Helper()
	db := newTestDB(t)
	wallet := NewWalletService(db)
	duels := NewDuelService(db, wallet, fixedProvider{}, nil, time.Minute, 0.1)
	return duels, NewSweeper(db, wallet, 30*time.Minute), wallet
}

func backdate(t *testing.T, sweeper *Sweeper, duelID, column string, to time.Time) {
	t.Helper()
	require.NoError(t, sweeper.DB.Model(&models.Duel{}).
		Where("id = ?", duelID).
		Update(column, to).Error)
}

func TestSweepCancelsStaleOpenDuel(t *testing.T) {
	duels, sweeper, wallet := newSweeperFixture(t)
	fund(t, wallet, "alice", 50)

	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)
	backdate(t, sweeper, duel.ID, "created_at", time.Now().Add(-time.Hour))

	require.NoError(t, sweeper.SweepOnce())

	got, err := duels.GetDuel(duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuelCancelled, got.Status)
	assert.Equal(t, models.CancelNoAcceptTimeout, got.CancelReason)
	require.NotNil(t, got.EndedAt)

	acct := balanceOf(t, wallet, "alice")
	assert.Equal(t, 50.0, acct.Balance)
	assert.Equal(t, 0.0, acct.Escrowed)
}

func TestSweepLeavesFreshOpenDuel(t *testing.T) {
	duels, sweeper, wallet := newSweeperFixture(t)
	fund(t, wallet, "alice", 50)

	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)

	require.NoError(t, sweeper.SweepOnce())

	got, err := duels.GetDuel(duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuelOpen, got.Status)
}

func TestSweepCancelsUnreadyActiveDuel(t *testing.T) {
	duels, sweeper, wallet := newSweeperFixture(t)
	fund(t, wallet, "alice", 50)
	fund(t, wallet, "bob", 50)

	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = duels.JoinDuel("bob", duel.ID, 0)
	require.NoError(t, err)
	_, err = duels.Ready("alice", duel.ID)
	require.NoError(t, err)
	backdate(t, sweeper, duel.ID, "ready_deadline", time.Now().Add(-time.Minute))

	require.NoError(t, sweeper.SweepOnce())

	got, err := duels.GetDuel(duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuelCancelled, got.Status)
	assert.Equal(t, models.CancelReadyTimeout, got.CancelReason)

	// Both sides refunded in full, ready or not.
	for _, u := range []string{"alice", "bob"} {
		acct := balanceOf(t, wallet, u)
		assert.Equal(t, 50.0, acct.Balance)
		assert.Equal(t, 0.0, acct.Escrowed)
	}
}

func TestSweepSparesFullyReadyDuel(t *testing.T) {
	duels, sweeper, wallet := newSweeperFixture(t)
	fund(t, wallet, "alice", 50)
	fund(t, wallet, "bob", 50)

	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = duels.JoinDuel("bob", duel.ID, 0)
	require.NoError(t, err)
	_, err = duels.Ready("alice", duel.ID)
	require.NoError(t, err)
	_, err = duels.Ready("bob", duel.ID)
	require.NoError(t, err)
	backdate(t, sweeper, duel.ID, "ready_deadline", time.Now().Add(-time.Minute))

	require.NoError(t, sweeper.SweepOnce())

	got, err := duels.GetDuel(duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuelActive, got.Status)
	assert.Nil(t, got.ReadyDeadline, "deadline cleared once everyone confirmed")
}

func TestSweepIsIdempotent(t *testing.T) {
	duels, sweeper, wallet := newSweeperFixture(t)
	fund(t, wallet, "alice", 50)

	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)
	backdate(t, sweeper, duel.ID, "created_at", time.Now().Add(-time.Hour))

	require.NoError(t, sweeper.SweepOnce())
	require.NoError(t, sweeper.SweepOnce())

	// Exactly one refund.
	acct := balanceOf(t, wallet, "alice")
	assert.Equal(t, 50.0, acct.Balance)
	txs, err := wallet.Transactions("alice", 10)
	require.NoError(t, err)
	releases := 0
	for _, entry := range txs {
		if entry.Kind == models.TxEscrowRelease {
			releases++
		}
	}
	assert.Equal(t, 1, releases)
}

func TestSweepDoesNotTouchSettledDuels(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	duels := NewDuelService(db, wallet, fixedProvider{}, nil, time.Minute, 0.1)
	resolver := NewResolverService(db, wallet, NewRatingService(db))
	sweeper := NewSweeper(db, wallet, 30*time.Minute)

	fund(t, wallet, "alice", 50)
	fund(t, wallet, "bob", 50)
	duel, err := duels.CreateDuel("alice", CreateDuelRequest{Game: "cs16", Stake: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = duels.JoinDuel("bob", duel.ID, 0)
	require.NoError(t, err)
	_, err = resolver.ReportDuel("alice", duel.ID, models.ReportWin)
	require.NoError(t, err)
	_, err = resolver.ReportDuel("bob", duel.ID, models.ReportLose)
	require.NoError(t, err)

	backdate(t, sweeper, duel.ID, "ready_deadline", time.Now().Add(-time.Hour))
	require.NoError(t, sweeper.SweepOnce())

	got, err := duels.GetDuel(duel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuelDone, got.Status)
	alice := balanceOf(t, wallet, "alice")
	assert.Equal(t, 58.0, alice.Balance, "prize stands, no refund on top")
}
