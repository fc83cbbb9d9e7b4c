package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

type teamStore struct {
	db *gorm.DB
}

func (s *teamStore) Upsert(ctx context.Context, team *models.Team) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"region", "name", "updated_at"}),
	}).Create(team).Error
}

func (s *teamStore) Get(ctx context.Context, guildID string) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "guild_id = ?", guildID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (s *teamStore) Delete(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Delete(&models.Team{}, "guild_id = ?", guildID).Error
}

type matchStore struct {
	db *gorm.DB
}

func (s *matchStore) Create(ctx context.Context, match *models.Match) error {
	return s.db.WithContext(ctx).Create(match).Error
}

func (s *matchStore) Get(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	err := s.db.WithContext(ctx).First(&match, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &match, nil
}

func (s *matchStore) SetSubs(ctx context.Context, id string, subs []models.SubRequest) error {
	res := s.db.WithContext(ctx).Model(&models.Match{ID: id}).
		Updates(models.Match{Subs: subs})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *matchStore) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.Match{}, "created_at < ?", olderThan)
	return res.RowsAffected, res.Error
}

type banStore struct {
	db *gorm.DB
}

func (s *banStore) Put(ctx context.Context, ban *models.Ban) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "expires_at"}),
	}).Create(ban).Error
}

func (s *banStore) Delete(ctx context.Context, guildID, userID string) error {
	res := s.db.WithContext(ctx).Delete(&models.Ban{}, "guild_id = ? AND user_id = ?", guildID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *banStore) DeleteByGuild(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Delete(&models.Ban{}, "guild_id = ?", guildID).Error
}

func (s *banStore) Find(ctx context.Context, guildID, userID string) (*models.Ban, error) {
	var ban models.Ban
	err := s.db.WithContext(ctx).First(&ban, "guild_id = ? AND user_id = ?", guildID, userID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ban, nil
}

type statsStore struct {
	db *gorm.DB
}

func (s *statsStore) IncrementGames(ctx context.Context, userIDs []string, region string, size int) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.PlayerStats, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.PlayerStats{UserID: id, Region: region, Size: size, Games: 1, UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "region"}, {Name: "size"}},
		DoUpdates: clause.Assignments(map[string]any{
			"games":      gorm.Expr("player_stats.games + 1"),
			"updated_at": now,
		}),
	}).Create(&rows).Error
}

func (s *statsStore) GamesFor(ctx context.Context, userIDs []string) (map[string]int, error) {
	games := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return games, nil
	}
	type row struct {
		UserID string
		Total  int
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.PlayerStats{}).
		Select("user_id, sum(games) as total").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		games[r.UserID] = r.Total
	}
	return games, nil
}
