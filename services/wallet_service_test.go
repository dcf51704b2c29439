package services

import (
	"errors"
	"testing"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEscrowMovesBalanceToHeld(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		return wallet.Escrow(tx, "alice", "USD", 30, TxRef{RefID: "d1", RefKind: "duel"})
	})
	require.NoError(t, err)

	acct := balanceOf(t, wallet, "alice")
	assert.Equal(t, 70.0, acct.Balance)
	assert.Equal(t, 30.0, acct.Escrowed)
}

func TestEscrowRejectsInsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 10)

	err := db.Transaction(func(tx *gorm.DB) error {
		return wallet.Escrow(tx, "alice", "USD", 30, TxRef{})
	})
	require.Error(t, err)
	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, CodeInsufficientFunds, ee.Code)

	// Nothing moved, nothing recorded beyond the deposit.
	acct := balanceOf(t, wallet, "alice")
	assert.Equal(t, 10.0, acct.Balance)
	assert.Equal(t, 0.0, acct.Escrowed)
	txs, err := wallet.Transactions("alice", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestReleaseEscrowRefunds(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 50)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := wallet.Escrow(tx, "alice", "USD", 20, TxRef{RefID: "d1"}); err != nil {
			return err
		}
		return wallet.ReleaseEscrow(tx, "alice", "USD", 20, TxRef{RefID: "d1", Reason: "ready-timeout"})
	})
	require.NoError(t, err)

	acct := balanceOf(t, wallet, "alice")
	assert.Equal(t, 50.0, acct.Balance)
	assert.Equal(t, 0.0, acct.Escrowed)
}

func TestConsumeEscrowLandsOnHouse(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 50)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := wallet.Escrow(tx, "alice", "USD", 20, TxRef{RefID: "d1"}); err != nil {
			return err
		}
		return wallet.ConsumeEscrow(tx, "alice", "USD", 20, TxRef{RefID: "d1", RefKind: "duel"})
	})
	require.NoError(t, err)

	alice := balanceOf(t, wallet, "alice")
	house := balanceOf(t, wallet, models.HouseUserID)
	assert.Equal(t, 30.0, alice.Balance)
	assert.Equal(t, 0.0, alice.Escrowed)
	assert.Equal(t, 20.0, house.Balance)
}

func TestReleaseEscrowUnderflowFails(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 50)

	err := db.Transaction(func(tx *gorm.DB) error {
		return wallet.ReleaseEscrow(tx, "alice", "USD", 5, TxRef{})
	})
	require.Error(t, err)
	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, CodeConflict, ee.Code)
}

func TestLedgerRecordsEveryMove(t *testing.T) {
	db := newTestDB(t)
	wallet := NewWalletService(db)
	fund(t, wallet, "alice", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := wallet.Escrow(tx, "alice", "USD", 25, TxRef{RefID: "d9", RefKind: "duel"}); err != nil {
			return err
		}
		return wallet.ReleaseEscrow(tx, "alice", "USD", 25, TxRef{RefID: "d9", RefKind: "duel", Reason: "no-accept-timeout"})
	})
	require.NoError(t, err)

	txs, err := wallet.Transactions("alice", 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	kinds := map[string]bool{}
	for _, entry := range txs {
		kinds[entry.Kind] = true
	}
	assert.True(t, kinds[models.TxDeposit])
	assert.True(t, kinds[models.TxEscrow])
	assert.True(t, kinds[models.TxEscrowRelease])
}
