package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

type lineupStore struct {
	db *gorm.DB
}

func (s *lineupStore) Create(ctx context.Context, lineup *models.Lineup) error {
	return s.db.WithContext(ctx).Create(lineup).Error
}

func (s *lineupStore) Get(ctx context.Context, channelID string) (*models.Lineup, error) {
	var lineup models.Lineup
	err := s.db.WithContext(ctx).Preload("Roles").First(&lineup, "channel_id = ?", channelID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lineup, nil
}

func (s *lineupStore) Delete(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Role{}, "channel_id = ?", channelID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Lineup{}, "channel_id = ?", channelID).Error
	})
}

func (s *lineupStore) ChannelsOfGuild(ctx context.Context, guildID string) ([]string, error) {
	var channels []string
	err := s.db.WithContext(ctx).Model(&models.Lineup{}).
		Where("guild_id = ?", guildID).
		Pluck("channel_id", &channels).Error
	return channels, err
}

func (s *lineupStore) BeginPicking(ctx context.Context, channelID string) error {
	res := s.db.WithContext(ctx).Model(&models.Lineup{}).
		Where("channel_id = ? AND is_picking = ?", channelID, false).
		Update("is_picking", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *lineupStore) ClearPicking(ctx context.Context, channelID string) error {
	res := s.db.WithContext(ctx).Model(&models.Lineup{}).
		Where("channel_id = ?", channelID).
		Update("is_picking", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *lineupStore) SetLastNotification(ctx context.Context, channelID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Lineup{}).
		Where("channel_id = ?", channelID).
		Update("last_notification_time", at).Error
}

func (s *lineupStore) AssignIfEmpty(ctx context.Context, channelID, roleName string, lineupNumber int, user models.User) error {
	res := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("channel_id = ? AND name = ? AND lineup_number = ? AND user_id IS NULL",
			channelID, roleName, lineupNumber).
		Updates(map[string]any{"user_id": user.ID, "user_name": user.Name})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *lineupStore) Swap(ctx context.Context, channelID, fromRole string, fromNumber int, toRole string, toNumber int, user models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Role{}).
			Where("channel_id = ? AND name = ? AND lineup_number = ? AND user_id = ?",
				channelID, fromRole, fromNumber, user.ID).
			Updates(map[string]any{"user_id": nil, "user_name": ""})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		res = tx.Model(&models.Role{}).
			Where("channel_id = ? AND name = ? AND lineup_number = ? AND user_id IS NULL",
				channelID, toRole, toNumber).
			Updates(map[string]any{"user_id": user.ID, "user_name": user.Name})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *lineupStore) ClearRole(ctx context.Context, channelID, roleName string, lineupNumber int) error {
	res := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("channel_id = ? AND name = ? AND lineup_number = ? AND user_id IS NOT NULL",
			channelID, roleName, lineupNumber).
		Updates(map[string]any{"user_id": nil, "user_name": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *lineupStore) RemoveUser(ctx context.Context, channelID, userID string) error {
	res := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Updates(map[string]any{"user_id": nil, "user_name": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *lineupStore) RemoveUsersEverywhere(ctx context.Context, userIDs []string, exceptChannelID string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var channels []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Role{}).Distinct("channel_id").
			Where("user_id IN ? AND channel_id <> ?", userIDs, exceptChannelID).
			Pluck("channel_id", &channels).Error; err != nil {
			return err
		}
		if len(channels) == 0 {
			return nil
		}
		return tx.Model(&models.Role{}).
			Where("user_id IN ? AND channel_id <> ?", userIDs, exceptChannelID).
			Updates(map[string]any{"user_id": nil, "user_name": ""}).Error
	})
	return channels, err
}

func (s *lineupStore) ResetAllSides(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Model(&models.Role{}).
		Where("channel_id = ? AND user_id IS NOT NULL", channelID).
		Updates(map[string]any{"user_id": nil, "user_name": ""}).Error
}

func (s *lineupStore) RotateSides(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Vacate the side that just played before it becomes the waiting side.
		if err := tx.Model(&models.Role{}).
			Where("channel_id = ? AND lineup_number = 1 AND user_id IS NOT NULL", channelID).
			Updates(map[string]any{"user_id": nil, "user_name": ""}).Error; err != nil {
			return err
		}
		// Renumber through 0 so the unique slot index never collides.
		if err := tx.Model(&models.Role{}).
			Where("channel_id = ? AND lineup_number = 1", channelID).
			Update("lineup_number", 0).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Role{}).
			Where("channel_id = ? AND lineup_number = 2", channelID).
			Update("lineup_number", 1).Error; err != nil {
			return err
		}
		return tx.Model(&models.Role{}).
			Where("channel_id = ? AND lineup_number = 0", channelID).
			Update("lineup_number", 2).Error
	})
}

func (s *lineupStore) BulkAssign(ctx context.Context, channelID string, assignments []Assignment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range assignments {
			if err := tx.Model(&models.Role{}).
				Where("channel_id = ? AND name = ? AND lineup_number = ?",
					channelID, a.RoleName, a.LineupNumber).
				Updates(map[string]any{"user_id": a.User.ID, "user_name": a.User.Name}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
