package services

import (
	"testing"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test. SQLite has no row
// locks, so the FOR UPDATE clause is stripped; the single connection
// serializes writes anyway.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	db.ClauseBuilders["LOCKING"] = func(c clause.Clause, b clause.Builder) {}

	require.NoError(t, db.AutoMigrate(
		&models.Duel{},
		&models.DuelPlayer{},
		&models.MatchReport{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentMatch{},
		&models.WalletAccount{},
		&models.WalletTransaction{},
		&models.Rating{},
	))
	return db
}

// fund tops up a user's USD balance through the normal deposit path.
func fund(t *testing.T, wallet *WalletService, userID string, amount float64) {
	t.Helper()
	_, err := wallet.Deposit(userID, "USD", amount, "test")
	require.NoError(t, err)
}

func balanceOf(t *testing.T, wallet *WalletService, userID string) *models.WalletAccount {
	t.Helper()
	acct, err := wallet.Balance(userID, "USD")
	require.NoError(t, err)
	return acct
}

// requireEngineCode asserts err is an EngineError with the given code.
func requireEngineCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, code, ee.Code)
}

// fixedProvider pins session assignment so tests can assert on it.
type fixedProvider struct{}

func (fixedProvider) Reserve(game string) MatchConfig {
	return MatchConfig{Map: "de_dust2", Server: "10.0.0.1:27015"}
}

func (fixedProvider) Credentials(server string) (string, string) {
	if server == "" {
		return "", ""
	}
	return "hunter2", "steam://connect/" + server + "/hunter2"
}

// identityShuffler keeps seeding order deterministic.
type identityShuffler struct{}

func (identityShuffler) Shuffle(n int, swap func(i, j int)) {}
