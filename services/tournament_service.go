package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TournamentService handles tournament creation and entry. The bracket itself
// is BracketService territory; this service only escrows the fee and hands
// over once the lobby is full.
type TournamentService struct {
	DB      *gorm.DB
	Wallet  *WalletService
	Bracket *BracketService
}

func NewTournamentService(db *gorm.DB, wallet *WalletService, bracket *BracketService) *TournamentService {
	return &TournamentService{DB: db, Wallet: wallet, Bracket: bracket}
}

type CreateTournamentRequest struct {
	Game       string     `json:"game"`
	Name       string     `json:"name"`
	EntryFee   float64    `json:"entry_fee"`
	Currency   string     `json:"currency"`
	MaxPlayers int        `json:"max_players"`
	Rake       float64    `json:"rake"`
	StartsAt   *time.Time `json:"starts_at"`
}

func isPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// CreateTournament opens a new lobby. MaxPlayers must be a power of two so
// the bracket needs no byes.
func (s *TournamentService) CreateTournament(req CreateTournamentRequest) (*models.Tournament, error) {
	if req.Game == "" {
		return nil, Validationf("game is required")
	}
	// Free tournaments are allowed; paid ones need at least a cent so the
	// pool survives rounding.
	if req.EntryFee != 0 && req.EntryFee < 0.01 {
		return nil, Validationf("entry_fee must be 0 or at least 0.01")
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if !isPowerOfTwo(req.MaxPlayers) {
		return nil, Validationf("max_players must be a power of two, at least 2")
	}
	if req.Rake < 0 || req.Rake >= 1 {
		return nil, Validationf("rake must be in [0, 1)")
	}
	t := models.Tournament{
		ID:         uuid.NewString(),
		Game:       req.Game,
		Name:       req.Name,
		TeamSize:   1,
		EntryFee:   req.EntryFee,
		Currency:   req.Currency,
		MaxPlayers: req.MaxPlayers,
		Rake:       req.Rake,
		Status:     models.TournamentOpen,
		StartsAt:   req.StartsAt,
	}
	if err := s.DB.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Join escrows the entry fee and registers the user. When the lobby hits
// capacity the bracket starts in a follow-up transaction.
func (s *TournamentService) Join(userID, tournamentID string) (*models.Tournament, error) {
	var t models.Tournament
	var full bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&t, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if t.Status != models.TournamentOpen {
			return Conflictf("tournament is not open for entries")
		}
		var count int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ?", tournamentID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(t.MaxPlayers) {
			return Conflictf("tournament is full")
		}
		var existing int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflictf("already entered this tournament")
		}
		if t.EntryFee > 0 {
			ref := TxRef{RefID: t.ID, RefKind: "tournament", Reason: "entry-fee"}
			if err := s.Wallet.Escrow(tx, userID, t.Currency, t.EntryFee, ref); err != nil {
				return err
			}
		}
		if err := tx.Create(&models.TournamentParticipant{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			UserID:       userID,
			Status:       models.ParticipantJoined,
		}).Error; err != nil {
			return err
		}
		t.ParticipantCount = count + 1
		full = t.ParticipantCount >= int64(t.MaxPlayers)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if full {
		if err := s.Bracket.StartIfFull(t.ID); err != nil {
			log.Printf("[Tournament] start of %s failed, scheduler will retry: %v", t.ID, err)
		}
		s.DB.First(&t, "id = ?", t.ID)
	}
	return &t, nil
}

// Get loads a tournament with participants and bracket.
func (s *TournamentService) Get(tournamentID string) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.
		Preload("Participants").
		Preload("Matches", func(db *gorm.DB) *gorm.DB {
			return db.Order("round ASC, seq ASC")
		}).
		First(&t, "id = ?", tournamentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundf("tournament %s not found", tournamentID)
	}
	if err != nil {
		return nil, err
	}
	t.ParticipantCount = int64(len(t.Participants))
	return &t, nil
}

// List returns open and live tournaments, newest first.
func (s *TournamentService) List() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := s.DB.
		Where("status IN ?", []models.TournamentStatus{models.TournamentOpen, models.TournamentLive}).
		Order("created_at DESC").
		Limit(100).
		Find(&tournaments).Error
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		var count int64
		s.DB.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ?", tournaments[i].ID).Count(&count)
		tournaments[i].ParticipantCount = count
	}
	return tournaments, nil
}

// StartPending retries StartIfFull on every open tournament. Covers a start
// that failed after the final join committed.
func (s *TournamentService) StartPending() {
	var ids []string
	if err := s.DB.Model(&models.Tournament{}).
		Where("status = ?", models.TournamentOpen).
		Pluck("id", &ids).Error; err != nil {
		log.Printf("[Tournament] pending scan failed: %v", err)
		return
	}
	for _, id := range ids {
		if err := s.Bracket.StartIfFull(id); err != nil {
			log.Printf("[Tournament] retry start of %s failed: %v", id, err)
		}
	}
}

// StartTournamentScheduler runs the start-retry reconciliation on an interval
// until ctx is cancelled.
func (s *TournamentService) StartTournamentScheduler(ctx context.Context) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Tournament] scheduler init failed: %v", err)
		return
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(s.StartPending),
	)
	if err != nil {
		log.Printf("[Tournament] scheduler job failed: %v", err)
		return
	}
	scheduler.Start()
	log.Println("⏰ Tournament start scheduler running")
	go func() {
		<-ctx.Done()
		if err := scheduler.Shutdown(); err != nil {
			log.Printf("[Tournament] scheduler shutdown: %v", err)
		}
	}()
}

// --- HTTP surface ---

func (s *TournamentService) Create(c *fiber.Ctx) error {
	var req CreateTournamentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	t, err := s.CreateTournament(req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (s *TournamentService) JoinHTTP(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	t, err := s.Join(userID, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) GetHTTP(c *fiber.Ctx) error {
	t, err := s.Get(c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) ListHTTP(c *fiber.Ctx) error {
	tournaments, err := s.List()
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"tournaments": tournaments})
}
