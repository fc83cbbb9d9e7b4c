package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

type challengeStore struct {
	db *gorm.DB
}

func (s *challengeStore) Create(ctx context.Context, challenge *models.Challenge) error {
	return s.db.WithContext(ctx).Create(challenge).Error
}

func (s *challengeStore) Update(ctx context.Context, challenge *models.Challenge) error {
	return s.db.WithContext(ctx).Save(challenge).Error
}

func (s *challengeStore) Get(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.WithContext(ctx).First(&challenge, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &challenge, nil
}

func (s *challengeStore) FindByChannel(ctx context.Context, channelID string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.WithContext(ctx).
		Where("initiating_channel_id = ? OR challenged_channel_id = ?", channelID, channelID).
		First(&challenge).Error
	if err != nil {
		return nil, translate(err)
	}
	return &challenge, nil
}

func (s *challengeStore) FindByGuild(ctx context.Context, guildID string) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.db.WithContext(ctx).
		Where("initiating_guild_id = ? OR challenged_guild_id = ?", guildID, guildID).
		Find(&challenges).Error
	return challenges, err
}

func (s *challengeStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Challenge{}, "id = ?", id).Error
}
