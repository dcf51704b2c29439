package services

import (
	"errors"
	"math"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletService implements the ledger the engine escrows against. Every
// balance mutation locks the account row and appends a transaction record, so
// callers get atomicity by passing their open *gorm.DB transaction in.
type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// TxRef qualifies a ledger entry: what moved the money and why.
type TxRef struct {
	RefID     string
	RefKind   string
	Reason    string
	Placement int
	Source    string
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// account fetches-or-creates the locked account row inside tx.
func (s *WalletService) account(tx *gorm.DB, userID, currency string) (*models.WalletAccount, error) {
	var acct models.WalletAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.WalletAccount{
			ID:       uuid.NewString(),
			UserID:   userID,
			Currency: currency,
		}
		if err := tx.Create(&acct).Error; err != nil {
			return nil, err
		}
		return &acct, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *WalletService) record(tx *gorm.DB, userID, currency, kind string, amount float64, ref TxRef) error {
	return tx.Create(&models.WalletTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Kind:      kind,
		Amount:    round2(amount),
		RefID:     ref.RefID,
		RefKind:   ref.RefKind,
		Reason:    ref.Reason,
		Placement: ref.Placement,
		Source:    ref.Source,
	}).Error
}

// Credit adds spendable funds.
func (s *WalletService) Credit(tx *gorm.DB, userID, currency string, amount float64, kind string, ref TxRef) error {
	if amount <= 0 {
		return Validationf("credit amount must be positive")
	}
	acct, err := s.account(tx, userID, currency)
	if err != nil {
		return err
	}
	acct.Balance = round2(acct.Balance + amount)
	if err := tx.Model(acct).Update("balance", acct.Balance).Error; err != nil {
		return err
	}
	return s.record(tx, userID, currency, kind, amount, ref)
}

// Debit removes spendable funds, failing with ErrInsufficientFunds before any
// write when the balance does not cover the amount.
func (s *WalletService) Debit(tx *gorm.DB, userID, currency string, amount float64, kind string, ref TxRef) error {
	if amount <= 0 {
		return Validationf("debit amount must be positive")
	}
	acct, err := s.account(tx, userID, currency)
	if err != nil {
		return err
	}
	if acct.Balance < amount {
		return ErrInsufficientFunds
	}
	acct.Balance = round2(acct.Balance - amount)
	if err := tx.Model(acct).Update("balance", acct.Balance).Error; err != nil {
		return err
	}
	return s.record(tx, userID, currency, kind, -amount, ref)
}

// Escrow moves funds from spendable to held.
func (s *WalletService) Escrow(tx *gorm.DB, userID, currency string, amount float64, ref TxRef) error {
	if amount <= 0 {
		return Validationf("escrow amount must be positive")
	}
	acct, err := s.account(tx, userID, currency)
	if err != nil {
		return err
	}
	if acct.Balance < amount {
		return ErrInsufficientFunds
	}
	acct.Balance = round2(acct.Balance - amount)
	acct.Escrowed = round2(acct.Escrowed + amount)
	if err := tx.Model(acct).Updates(map[string]interface{}{
		"balance":  acct.Balance,
		"escrowed": acct.Escrowed,
	}).Error; err != nil {
		return err
	}
	return s.record(tx, userID, currency, models.TxEscrow, -amount, ref)
}

// ReleaseEscrow refunds held funds back to spendable.
func (s *WalletService) ReleaseEscrow(tx *gorm.DB, userID, currency string, amount float64, ref TxRef) error {
	acct, err := s.account(tx, userID, currency)
	if err != nil {
		return err
	}
	if acct.Escrowed < amount {
		return Conflictf("escrow underflow for user %s", userID)
	}
	acct.Balance = round2(acct.Balance + amount)
	acct.Escrowed = round2(acct.Escrowed - amount)
	if err := tx.Model(acct).Updates(map[string]interface{}{
		"balance":  acct.Balance,
		"escrowed": acct.Escrowed,
	}).Error; err != nil {
		return err
	}
	return s.record(tx, userID, currency, models.TxEscrowRelease, amount, ref)
}

// ConsumeEscrow removes held funds permanently (the pool side of a two-phase
// escrow/consume). The consumed amount lands on the house account so the
// ledger keeps balancing.
func (s *WalletService) ConsumeEscrow(tx *gorm.DB, userID, currency string, amount float64, ref TxRef) error {
	acct, err := s.account(tx, userID, currency)
	if err != nil {
		return err
	}
	if acct.Escrowed < amount {
		return Conflictf("escrow underflow for user %s", userID)
	}
	acct.Escrowed = round2(acct.Escrowed - amount)
	if err := tx.Model(acct).Update("escrowed", acct.Escrowed).Error; err != nil {
		return err
	}
	if err := s.record(tx, userID, currency, models.TxEscrowConsume, -amount, ref); err != nil {
		return err
	}
	house, err := s.account(tx, models.HouseUserID, currency)
	if err != nil {
		return err
	}
	house.Balance = round2(house.Balance + amount)
	if err := tx.Model(house).Update("balance", house.Balance).Error; err != nil {
		return err
	}
	return s.record(tx, models.HouseUserID, currency, models.TxEscrowConsume, amount, ref)
}

// Balance returns the account view for a user, zero-valued when absent.
func (s *WalletService) Balance(userID, currency string) (*models.WalletAccount, error) {
	var acct models.WalletAccount
	err := s.DB.Where("user_id = ? AND currency = ?", userID, currency).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.WalletAccount{UserID: userID, Currency: currency}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Deposit credits spendable funds from an external source (admin top-up).
func (s *WalletService) Deposit(userID, currency string, amount float64, source string) (*models.WalletAccount, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.Credit(tx, userID, currency, amount, models.TxDeposit, TxRef{Reason: "deposit", Source: source})
	})
	if err != nil {
		return nil, err
	}
	return s.Balance(userID, currency)
}

// Transactions returns the newest ledger entries for a user.
func (s *WalletService) Transactions(userID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []models.WalletTransaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// --- HTTP surface ---

func (s *WalletService) GetBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	currency := c.Query("currency", "USD")
	acct, err := s.Balance(userID, currency)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(acct)
}

func (s *WalletService) GetTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	txs, err := s.Transactions(userID, c.QueryInt("limit", 50))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

func (s *WalletService) AdminDeposit(c *fiber.Ctx) error {
	var req struct {
		UserID   string  `json:"user_id"`
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id required", "code": CodeValidation})
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	acct, err := s.Deposit(req.UserID, req.Currency, req.Amount, models.ResultSourceAdmin)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(acct)
}
