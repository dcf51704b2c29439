package services

import (
	"errors"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingService maintains BeavRank points and serves the read-only
// leaderboard/profile views. Mutation happens only from finalization, inside
// the finalizer's transaction.
type RatingService struct {
	DB *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{DB: db}
}

// Apply records one finalized match for a user inside tx. The row is created
// at the baseline on first contact.
func (s *RatingService) Apply(tx *gorm.DB, userID string, won bool) error {
	var rating models.Rating
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rating = models.Rating{
			ID:     uuid.NewString(),
			UserID: userID,
			Points: models.RatingBaseline,
		}
		if err := tx.Create(&rating).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	rating.ApplyResult(won)
	return tx.Model(&rating).Updates(map[string]interface{}{
		"points":  rating.Points,
		"matches": rating.Matches,
		"wins":    rating.Wins,
		"losses":  rating.Losses,
	}).Error
}

type ratingView struct {
	models.Rating
	Tier     string `json:"tier"`
	Division int    `json:"division,omitempty"`
}

func toView(r models.Rating) ratingView {
	tier, div := models.Tier(r.Points)
	return ratingView{Rating: r, Tier: tier, Division: div}
}

// Leaderboard returns the top entries by points.
func (s *RatingService) Leaderboard(limit int) ([]ratingView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var ratings []models.Rating
	if err := s.DB.Order("points DESC").Limit(limit).Find(&ratings).Error; err != nil {
		return nil, err
	}
	views := make([]ratingView, 0, len(ratings))
	for _, r := range ratings {
		views = append(views, toView(r))
	}
	return views, nil
}

// Profile returns a user's rating (baseline when unrated) with recent
// finished duels joined in.
func (s *RatingService) Profile(userID string) (*ratingView, []models.Duel, error) {
	var rating models.Rating
	err := s.DB.Where("user_id = ?", userID).First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rating = models.Rating{UserID: userID, Points: models.RatingBaseline}
	} else if err != nil {
		return nil, nil, err
	}
	view := toView(rating)

	var recent []models.Duel
	err = s.DB.
		Joins("JOIN duel_players ON duel_players.duel_id = duels.id AND duel_players.user_id = ?", userID).
		Where("duels.status = ?", models.DuelDone).
		Order("duels.ended_at DESC").
		Limit(20).
		Find(&recent).Error
	if err != nil {
		return nil, nil, err
	}
	return &view, recent, nil
}

// --- HTTP surface ---

func (s *RatingService) GetLeaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	views, err := s.Leaderboard(limit)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"leaderboard": views})
}

func (s *RatingService) GetProfile(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		userID, _ = c.Locals("user_id").(string)
	}
	view, recent, err := s.Profile(userID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"rating": view, "recent_duels": recent})
}
