package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

type queueStore struct {
	db *gorm.DB
}

func (s *queueStore) Put(ctx context.Context, entry *models.LineupQueue) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		UpdateAll: true,
	}).Create(entry).Error
}

func (s *queueStore) Get(ctx context.Context, channelID string) (*models.LineupQueue, error) {
	var entry models.LineupQueue
	err := s.db.WithContext(ctx).First(&entry, "channel_id = ?", channelID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *queueStore) Delete(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Delete(&models.LineupQueue{}, "channel_id = ?", channelID).Error
}

func (s *queueStore) FindAvailable(ctx context.Context, region, excludeChannelID string, size int, guildID string) ([]models.LineupQueue, error) {
	var entries []models.LineupQueue
	err := s.db.WithContext(ctx).
		Where("region = ? AND size = ? AND channel_id <> ? AND challenge_id IS NULL", region, size, excludeChannelID).
		Where("visibility = ? OR (visibility = ? AND guild_id = ?)",
			models.VisibilityPublic, models.VisibilityTeam, guildID).
		Order("created_at asc").
		Find(&entries).Error
	return entries, err
}

func (s *queueStore) ReserveBoth(ctx context.Context, channelA, channelB, challengeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range []string{channelA, channelB} {
			res := tx.Model(&models.LineupQueue{}).
				Where("channel_id = ? AND challenge_id IS NULL", ch).
				Update("challenge_id", challengeID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
		}
		return nil
	})
}

func (s *queueStore) Release(ctx context.Context, challengeID string) error {
	return s.db.WithContext(ctx).Model(&models.LineupQueue{}).
		Where("challenge_id = ?", challengeID).
		Update("challenge_id", nil).Error
}

func (s *queueStore) SetMessages(ctx context.Context, channelID string, handles []models.MessageHandle) error {
	return s.db.WithContext(ctx).Model(&models.LineupQueue{ChannelID: channelID}).
		Updates(models.LineupQueue{NotificationMessages: handles}).Error
}
