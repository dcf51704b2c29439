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

// ResolverService reconciles self-reports into a single authoritative
// outcome. Two consistent reports finalize; inconsistent reports park the
// entity in pending_review for an admin finalize.
type ResolverService struct {
	DB      *gorm.DB
	Wallet  *WalletService
	Ratings *RatingService

	// Bracket is set after construction; match finalization triggers a
	// round-advance check through it.
	Bracket *BracketService
}

func NewResolverService(db *gorm.DB, wallet *WalletService, ratings *RatingService) *ResolverService {
	return &ResolverService{DB: db, Wallet: wallet, Ratings: ratings}
}

func validResult(result string) bool {
	return result == models.ReportWin || result == models.ReportLose
}

// upsertReport writes a single report per (ref, user); a repeat from the same
// user replaces the earlier result.
func upsertReport(tx *gorm.DB, refID, refKind, userID, result string) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ref_id"}, {Name: "ref_kind"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"result":     result,
			"updated_at": time.Now(),
		}),
	}).Create(&models.MatchReport{
		ID:      uuid.NewString(),
		RefID:   refID,
		RefKind: refKind,
		UserID:  userID,
		Result:  result,
	}).Error
}

// impliedWinnerTeam maps a reporter's claim to the team it implies won.
func impliedWinnerTeam(reporterTeam int, result string) int {
	if result == models.ReportWin {
		return reporterTeam
	}
	return 3 - reporterTeam
}

// ReportDuel records a self-report and resolves the duel once both team
// captains have spoken. Reports on a terminal duel are a successful no-op.
func (s *ResolverService) ReportDuel(userID, duelID, result string) (*models.Duel, error) {
	if !validResult(result) {
		return nil, Validationf("result must be win or lose")
	}
	var duel models.Duel
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&duel, "id = ?", duelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("duel %s not found", duelID)
			}
			return err
		}
		if duel.Status.IsTerminal() {
			return nil
		}
		if duel.Status == models.DuelOpen {
			return Conflictf("duel has no opponent yet")
		}

		var players []models.DuelPlayer
		if err := tx.Where("duel_id = ?", duelID).Order("joined_at ASC").Find(&players).Error; err != nil {
			return err
		}
		duel.Players = players
		var reporter *models.DuelPlayer
		for i := range players {
			if players[i].UserID == userID {
				reporter = &players[i]
			}
		}
		if reporter == nil {
			return Forbiddenf("not a participant of this duel")
		}

		if err := upsertReport(tx, duelID, models.ReportRefDuel, userID, result); err != nil {
			return err
		}

		// One report per side is required, from the team captains.
		captains := map[string]int{}
		for _, p := range players {
			if p.IsCaptain {
				captains[p.UserID] = p.Team
			}
		}
		var reports []models.MatchReport
		if err := tx.Where("ref_id = ? AND ref_kind = ?", duelID, models.ReportRefDuel).
			Find(&reports).Error; err != nil {
			return err
		}
		teamClaims := map[int]int{} // captain's team -> implied winner team
		for _, r := range reports {
			if team, ok := captains[r.UserID]; ok {
				teamClaims[team] = impliedWinnerTeam(team, r.Result)
			}
		}

		if len(teamClaims) < 2 {
			return s.markDuel(tx, &duel, models.DuelReported)
		}
		if teamClaims[1] != teamClaims[2] {
			return s.markDuel(tx, &duel, models.DuelPendingReview)
		}
		return s.finalizeDuelTx(tx, &duel, teamClaims[1], models.ResultSourceReports)
	})
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// markDuel moves a duel to an intermediate reporting state with a status
// guard in the same update.
func (s *ResolverService) markDuel(tx *gorm.DB, duel *models.Duel, to models.DuelStatus) error {
	if duel.Status == to {
		return nil
	}
	if !models.CanTransition(duel.Status, to) {
		return Conflictf("duel cannot move from %s to %s", duel.Status, to)
	}
	res := tx.Model(&models.Duel{}).
		Where("id = ? AND status = ?", duel.ID, duel.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("duel changed state concurrently")
	}
	duel.Status = to
	return nil
}

// finalizeDuelTx settles a duel: winner recorded, every escrowed stake
// consumed, prize shares credited, ratings applied. The status guard makes
// double finalization impossible.
func (s *ResolverService) finalizeDuelTx(tx *gorm.DB, duel *models.Duel, winnerTeam int, source string) error {
	var winners []models.DuelPlayer
	var winnerUserID string
	for _, p := range duel.Players {
		if p.Team == winnerTeam {
			winners = append(winners, p)
			if p.IsCaptain || winnerUserID == "" {
				winnerUserID = p.UserID
			}
		}
	}
	if len(winners) == 0 {
		return Validationf("winning team has no players")
	}

	now := time.Now()
	res := tx.Model(&models.Duel{}).
		Where("id = ? AND status IN ?", duel.ID, models.ResolvableDuelStatuses()).
		Updates(map[string]interface{}{
			"status":         models.DuelDone,
			"winner_team":    winnerTeam,
			"winner_user_id": winnerUserID,
			"result_source":  source,
			"ended_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("duel already settled")
	}

	ref := TxRef{RefID: duel.ID, RefKind: models.ReportRefDuel, Source: source}
	for _, p := range duel.Players {
		if err := s.Wallet.ConsumeEscrow(tx, p.UserID, duel.Currency, duel.Stake, ref); err != nil {
			return err
		}
	}
	pool := duel.Stake * float64(len(duel.Players)) * (1 - duel.Rake)
	share := round2(pool / float64(len(winners)))
	if share > 0 {
		for _, w := range winners {
			if err := s.Wallet.Debit(tx, models.HouseUserID, duel.Currency, share, models.TxPrize, ref); err != nil {
				return err
			}
			if err := s.Wallet.Credit(tx, w.UserID, duel.Currency, share, models.TxPrize, ref); err != nil {
				return err
			}
		}
	}
	for _, p := range duel.Players {
		if err := s.Ratings.Apply(tx, p.UserID, p.Team == winnerTeam); err != nil {
			return err
		}
	}

	duel.Status = models.DuelDone
	duel.WinnerTeam = &winnerTeam
	duel.WinnerUserID = &winnerUserID
	duel.ResultSource = source
	duel.EndedAt = &now
	return nil
}

// FinalizeDuel is the injected admin/server resolution for a duel that could
// not self-resolve. Finalizing an already-done duel is a no-op.
func (s *ResolverService) FinalizeDuel(duelID, winnerUserID, source string) (*models.Duel, error) {
	var duel models.Duel
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&duel, "id = ?", duelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("duel %s not found", duelID)
			}
			return err
		}
		if duel.Status == models.DuelDone {
			return nil
		}
		if duel.Status == models.DuelCancelled {
			return Conflictf("duel was cancelled")
		}
		if err := tx.Where("duel_id = ?", duelID).Order("joined_at ASC").Find(&duel.Players).Error; err != nil {
			return err
		}
		winnerTeam := 0
		for _, p := range duel.Players {
			if p.UserID == winnerUserID {
				winnerTeam = p.Team
			}
		}
		if winnerTeam == 0 {
			return Validationf("winner must be a duel participant")
		}
		return s.finalizeDuelTx(tx, &duel, winnerTeam, source)
	})
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

// ReportMatch records a self-report for a bracket match. Finalization updates
// ratings only; tournament money moves at tournament finalization.
func (s *ResolverService) ReportMatch(userID, matchID, result string) (*models.TournamentMatch, error) {
	if !validResult(result) {
		return nil, Validationf("result must be win or lose")
	}
	var match models.TournamentMatch
	var finalized bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("match %s not found", matchID)
			}
			return err
		}
		if match.Status.IsTerminal() {
			return nil
		}
		if !match.HasPlayer(userID) {
			return Forbiddenf("not a participant of this match")
		}

		if err := upsertReport(tx, matchID, models.ReportRefMatch, userID, result); err != nil {
			return err
		}
		var reports []models.MatchReport
		if err := tx.Where("ref_id = ? AND ref_kind = ?", matchID, models.ReportRefMatch).
			Find(&reports).Error; err != nil {
			return err
		}
		claims := map[string]string{} // reporter -> implied winner user id
		for _, r := range reports {
			if !match.HasPlayer(r.UserID) {
				continue
			}
			if r.Result == models.ReportWin {
				claims[r.UserID] = r.UserID
			} else {
				claims[r.UserID] = match.Opponent(r.UserID)
			}
		}
		if len(claims) < 2 {
			return s.markMatch(tx, &match, models.DuelReported)
		}
		if claims[match.P1UserID] != claims[match.P2UserID] {
			return s.markMatch(tx, &match, models.DuelPendingReview)
		}
		if err := s.finalizeMatchTx(tx, &match, claims[match.P1UserID], models.ResultSourceReports); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if finalized {
		s.advance(&match)
	}
	return &match, nil
}

func (s *ResolverService) markMatch(tx *gorm.DB, match *models.TournamentMatch, to models.DuelStatus) error {
	if match.Status == to {
		return nil
	}
	if !models.CanTransition(match.Status, to) {
		return Conflictf("match cannot move from %s to %s", match.Status, to)
	}
	res := tx.Model(&models.TournamentMatch{}).
		Where("id = ? AND status = ?", match.ID, match.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("match changed state concurrently")
	}
	match.Status = to
	return nil
}

// finalizeMatchTx settles a bracket match and applies ratings to both slots.
func (s *ResolverService) finalizeMatchTx(tx *gorm.DB, match *models.TournamentMatch, winnerUserID, source string) error {
	now := time.Now()
	res := tx.Model(&models.TournamentMatch{}).
		Where("id = ? AND status IN ?", match.ID, models.ResolvableMatchStatuses()).
		Updates(map[string]interface{}{
			"status":         models.DuelDone,
			"winner_user_id": winnerUserID,
			"result_source":  source,
			"ended_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("match already settled")
	}
	if err := s.Ratings.Apply(tx, match.P1UserID, match.P1UserID == winnerUserID); err != nil {
		return err
	}
	if err := s.Ratings.Apply(tx, match.P2UserID, match.P2UserID == winnerUserID); err != nil {
		return err
	}
	match.Status = models.DuelDone
	match.WinnerUserID = &winnerUserID
	match.ResultSource = source
	match.EndedAt = &now
	return nil
}

// FinalizeMatch is the admin resolution for an inconsistent bracket match.
func (s *ResolverService) FinalizeMatch(matchID, winnerUserID, source string) (*models.TournamentMatch, error) {
	var match models.TournamentMatch
	var finalized bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("match %s not found", matchID)
			}
			return err
		}
		if match.Status == models.DuelDone {
			return nil
		}
		if !match.HasPlayer(winnerUserID) {
			return Validationf("winner must be a match participant")
		}
		if err := s.finalizeMatchTx(tx, &match, winnerUserID, source); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if finalized {
		s.advance(&match)
	}
	return &match, nil
}

// advance kicks the bracket after a match settles, outside the settlement
// transaction so round advance serializes on the tournament row instead.
func (s *ResolverService) advance(match *models.TournamentMatch) {
	if s.Bracket == nil {
		return
	}
	if err := s.Bracket.MaybeAdvance(match.TournamentID, match.Round); err != nil {
		log.Printf("[Bracket] advance after match %s failed: %v", match.ID, err)
	}
}

// --- HTTP surface ---

func (s *ResolverService) ReportDuelHTTP(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		Result string `json:"result"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	duel, err := s.ReportDuel(userID, c.Params("id"), req.Result)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(duel)
}

func (s *ResolverService) ReportMatchHTTP(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		Result string `json:"result"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": CodeValidation})
	}
	match, err := s.ReportMatch(userID, c.Params("id"), req.Result)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(match)
}

func (s *ResolverService) AdminFinalizeDuel(c *fiber.Ctx) error {
	var req struct {
		WinnerUserID string `json:"winner_user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.WinnerUserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner_user_id required", "code": CodeValidation})
	}
	duel, err := s.FinalizeDuel(c.Params("id"), req.WinnerUserID, models.ResultSourceAdmin)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(duel)
}

func (s *ResolverService) AdminFinalizeMatch(c *fiber.Ctx) error {
	var req struct {
		WinnerUserID string `json:"winner_user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.WinnerUserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner_user_id required", "code": CodeValidation})
	}
	match, err := s.FinalizeMatch(c.Params("id"), req.WinnerUserID, models.ResultSourceAdmin)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(match)
}
