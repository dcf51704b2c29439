package services

import (
	"errors"
	"log"
	"time"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DuelService owns the duel state machine: create, join, ready. Reporting and
// finalization live on the ResolverService; timeouts on the Sweeper.
type DuelService struct {
	DB       *gorm.DB
	Wallet   *WalletService
	Provider MatchConfigProvider
	Notifier *GameServerNotifier
	Sweeper  *Sweeper

	ReadyWindow time.Duration
	HouseRake   float64
}

func NewDuelService(db *gorm.DB, wallet *WalletService, provider MatchConfigProvider, notifier *GameServerNotifier, readyWindow time.Duration, rake float64) *DuelService {
	return &DuelService{
		DB:          db,
		Wallet:      wallet,
		Provider:    provider,
		Notifier:    notifier,
		ReadyWindow: readyWindow,
		HouseRake:   rake,
	}
}

type CreateDuelRequest struct {
	Game     string  `json:"game"`
	Stake    float64 `json:"stake"`
	Currency string  `json:"currency"`
	TeamSize int     `json:"team_size"`
}

// CreateDuel escrows the creator's stake and opens a duel. If the user is
// already in a non-terminal duel for the game, that duel is returned instead
// of an error so a repeated "Play" click stays idempotent.
func (s *DuelService) CreateDuel(userID string, req CreateDuelRequest) (*models.Duel, error) {
	// Sub-cent stakes round to zero prize shares and could never pay out.
	if req.Stake < 0.01 {
		return nil, Validationf("stake must be at least 0.01")
	}
	if req.Game == "" || req.Currency == "" {
		return nil, Validationf("game and currency are required")
	}
	if req.TeamSize < 1 {
		req.TeamSize = 1
	}

	var duel *models.Duel
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.activeDuelFor(tx, userID, req.Game)
		if err != nil {
			return err
		}
		if existing != nil {
			duel = existing
			return nil
		}

		duel = &models.Duel{
			ID:            uuid.NewString(),
			Game:          req.Game,
			TeamSize:      req.TeamSize,
			Stake:         req.Stake,
			Currency:      req.Currency,
			Rake:          s.HouseRake,
			Status:        models.DuelOpen,
			CreatorUserID: userID,
		}
		// Map and server are picked up front for 1v1 server games; the
		// password and ready deadline wait for the opponent.
		if req.TeamSize == 1 {
			cfg := s.Provider.Reserve(req.Game)
			duel.Map = cfg.Map
			duel.Server = cfg.Server
		}

		if err := s.Wallet.Escrow(tx, userID, req.Currency, req.Stake, TxRef{RefID: duel.ID, RefKind: models.ReportRefDuel}); err != nil {
			return err
		}
		if err := tx.Create(duel).Error; err != nil {
			return err
		}
		player := models.DuelPlayer{
			ID:        uuid.NewString(),
			DuelID:    duel.ID,
			UserID:    userID,
			Team:      1,
			IsCaptain: true,
		}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		duel.Players = []models.DuelPlayer{player}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return duel, nil
}

// activeDuelFor returns the user's current non-terminal duel for a game.
func (s *DuelService) activeDuelFor(tx *gorm.DB, userID, game string) (*models.Duel, error) {
	var duel models.Duel
	err := tx.
		Joins("JOIN duel_players ON duel_players.duel_id = duels.id AND duel_players.user_id = ?", userID).
		Where("duels.game = ? AND duels.status NOT IN ?", game, []models.DuelStatus{models.DuelDone, models.DuelCancelled}).
		Preload("Players").
		First(&duel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// JoinDuel escrows the joiner's stake and, when both sides are full, flips the
// duel to active with a ready deadline and session credentials.
func (s *DuelService) JoinDuel(userID, duelID string, team int) (*models.Duel, error) {
	var duel models.Duel
	var wentActive bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&duel, "id = ?", duelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("duel %s not found", duelID)
			}
			return err
		}
		if duel.Status != models.DuelOpen {
			return Conflictf("duel is not open for joining")
		}

		var players []models.DuelPlayer
		if err := tx.Where("duel_id = ?", duelID).Order("joined_at ASC").Find(&players).Error; err != nil {
			return err
		}
		counts := map[int]int{}
		for _, p := range players {
			if p.UserID == userID {
				return Conflictf("already in this duel")
			}
			counts[p.Team]++
		}
		if team == 0 {
			// Fill the emptier side; ties go to team 2 (creator holds team 1).
			team = 2
			if counts[1] < counts[2] {
				team = 1
			}
		}
		if team != 1 && team != 2 {
			return Validationf("team must be 1 or 2")
		}
		if counts[team] >= duel.TeamSize {
			return Conflictf("team %d is full", team)
		}

		if err := s.Wallet.Escrow(tx, userID, duel.Currency, duel.Stake, TxRef{RefID: duel.ID, RefKind: models.ReportRefDuel}); err != nil {
			return err
		}
		player := models.DuelPlayer{
			ID:        uuid.NewString(),
			DuelID:    duel.ID,
			UserID:    userID,
			Team:      team,
			IsCaptain: counts[team] == 0,
		}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		players = append(players, player)

		if len(players) == duel.RequiredPlayers() {
			deadline := time.Now().Add(s.ReadyWindow)
			updates := map[string]interface{}{
				"status":         models.DuelActive,
				"ready_deadline": deadline,
			}
			if duel.Server == "" {
				cfg := s.Provider.Reserve(duel.Game)
				if duel.Map == "" {
					updates["map"] = cfg.Map
					duel.Map = cfg.Map
				}
				updates["server"] = cfg.Server
				duel.Server = cfg.Server
			}
			if duel.Credentials == "" && duel.Server != "" {
				password, joinURL := s.Provider.Credentials(duel.Server)
				updates["credentials"] = password
				updates["join_url"] = joinURL
				duel.Credentials = password
				duel.JoinURL = joinURL
			}
			res := tx.Model(&models.Duel{}).
				Where("id = ? AND status = ?", duel.ID, models.DuelOpen).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return Conflictf("duel changed state while joining")
			}
			duel.Status = models.DuelActive
			duel.ReadyDeadline = &deadline
			wentActive = true
		}
		duel.Players = players
		return nil
	})
	if err != nil {
		return nil, err
	}
	if wentActive {
		// Outside the transaction: RCON is best-effort only.
		s.Notifier.PushPassword(duel.Server, duel.Credentials)
	}
	return &duel, nil
}

// Ready marks the caller ready. All players ready just means "live" for the
// UI; the status stays active until a result arrives.
func (s *DuelService) Ready(userID, duelID string) (*models.Duel, error) {
	var duel models.Duel
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&duel, "id = ?", duelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("duel %s not found", duelID)
			}
			return err
		}
		if duel.Status != models.DuelOpen && duel.Status != models.DuelActive {
			return Conflictf("duel is not awaiting ready checks")
		}
		res := tx.Model(&models.DuelPlayer{}).
			Where("duel_id = ? AND user_id = ?", duelID, userID).
			Update("ready", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Forbiddenf("not a participant of this duel")
		}
		return tx.Where("duel_id = ?", duelID).Order("joined_at ASC").Find(&duel.Players).Error
	})
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// GetDuel loads a duel with its roster.
func (s *DuelService) GetDuel(duelID string) (*models.Duel, error) {
	var duel models.Duel
	err := s.DB.Preload("Players", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).First(&duel, "id = ?", duelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundf("duel %s not found", duelID)
	}
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// ListDuels returns joinable open duels plus the caller's non-terminal ones.
func (s *DuelService) ListDuels(userID string) (open, mine []models.Duel, err error) {
	err = s.DB.Where("status = ?", models.DuelOpen).
		Preload("Players").
		Order("created_at DESC").
		Limit(100).
		Find(&open).Error
	if err != nil {
		return nil, nil, err
	}
	err = s.DB.
		Joins("JOIN duel_players ON duel_players.duel_id = duels.id AND duel_players.user_id = ?", userID).
		Where("duels.status NOT IN ?", []models.DuelStatus{models.DuelDone, models.DuelCancelled}).
		Preload("Players").
		Find(&mine).Error
	return open, mine, err
}

// --- HTTP surface ---

type duelView struct {
	*models.Duel
	MyTeam   int  `json:"my_team,omitempty"`
	MyReady  bool `json:"my_ready"`
	AllReady bool `json:"all_ready"`
}

func (s *DuelService) view(duel *models.Duel, userID string) duelView {
	v := duelView{Duel: duel, AllReady: len(duel.Players) > 0}
	for _, p := range duel.Players {
		if !p.Ready {
			v.AllReady = false
		}
		if p.UserID == userID {
			v.MyTeam = p.Team
			v.MyReady = p.Ready
		}
	}
	return v
}

func (s *DuelService) Create(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req CreateDuelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	duel, err := s.CreateDuel(userID, req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(201).JSON(s.view(duel, userID))
}

func (s *DuelService) Join(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		Team int `json:"team"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	s.sweep()
	duel, err := s.JoinDuel(userID, c.Params("id"), req.Team)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.view(duel, userID))
}

func (s *DuelService) MarkReady(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	s.sweep()
	duel, err := s.Ready(userID, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.view(duel, userID))
}

func (s *DuelService) Get(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	duel, err := s.GetDuel(c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(s.view(duel, userID))
}

func (s *DuelService) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	s.sweep()
	open, mine, err := s.ListDuels(userID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"open": open, "mine": mine})
}

// sweep runs the timeout pass opportunistically alongside user actions.
func (s *DuelService) sweep() {
	if s.Sweeper == nil {
		return
	}
	if err := s.Sweeper.SweepOnce(); err != nil {
		log.Printf("[Sweeper] opportunistic pass failed: %v", err)
	}
}
