// Package store persists the matchmaking entities. All cross-action
// coordination happens through the conditional updates here: a mutation
// guarded by a Where clause either matches and commits, or loses the race
// and reports ErrConflict for the caller to re-read and re-validate.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a conditional update matched zero rows because a
// concurrent action got there first.
var ErrConflict = errors.New("conditional update lost race")

// Assignment places a user into one named slot, used when a completed
// draft writes its final sides back in one transaction.
type Assignment struct {
	RoleName     string
	LineupNumber int
	User         models.User
}

type TeamStore interface {
	Upsert(ctx context.Context, team *models.Team) error
	Get(ctx context.Context, guildID string) (*models.Team, error)
	Delete(ctx context.Context, guildID string) error
}

type LineupStore interface {
	Create(ctx context.Context, lineup *models.Lineup) error
	Get(ctx context.Context, channelID string) (*models.Lineup, error)
	Delete(ctx context.Context, channelID string) error
	ChannelsOfGuild(ctx context.Context, guildID string) ([]string, error)
	// BeginPicking sets the picking flag only if it is currently clear, so
	// of several concurrent draft triggers exactly one wins; the rest get
	// ErrConflict.
	BeginPicking(ctx context.Context, channelID string) error
	ClearPicking(ctx context.Context, channelID string) error
	SetLastNotification(ctx context.Context, channelID string, at time.Time) error
	// AssignIfEmpty fills a slot only if it is currently empty.
	AssignIfEmpty(ctx context.Context, channelID, roleName string, lineupNumber int, user models.User) error
	// Swap vacates the user's current slot and fills the target slot in a
	// single transaction, so the user is never in both at once.
	Swap(ctx context.Context, channelID, fromRole string, fromNumber int, toRole string, toNumber int, user models.User) error
	ClearRole(ctx context.Context, channelID, roleName string, lineupNumber int) error
	// RemoveUser vacates every slot the user holds in one channel. Reports
	// ErrNotFound when the user held none.
	RemoveUser(ctx context.Context, channelID, userID string) error
	// RemoveUsersEverywhere vacates the users' slots in every channel except
	// one and returns the channels that were touched.
	RemoveUsersEverywhere(ctx context.Context, userIDs []string, exceptChannelID string) ([]string, error)
	ResetAllSides(ctx context.Context, channelID string) error
	// RotateSides clears the just-played side 1 and renumbers so the former
	// waiting side 2 becomes the active side 1.
	RotateSides(ctx context.Context, channelID string) error
	BulkAssign(ctx context.Context, channelID string, assignments []Assignment) error
}

type QueueStore interface {
	Put(ctx context.Context, entry *models.LineupQueue) error
	Get(ctx context.Context, channelID string) (*models.LineupQueue, error)
	Delete(ctx context.Context, channelID string) error
	FindAvailable(ctx context.Context, region, excludeChannelID string, size int, guildID string) ([]models.LineupQueue, error)
	// ReserveBoth marks two entries with the challenge id, both or neither.
	ReserveBoth(ctx context.Context, channelA, channelB, challengeID string) error
	Release(ctx context.Context, challengeID string) error
	SetMessages(ctx context.Context, channelID string, handles []models.MessageHandle) error
}

type ChallengeStore interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	Update(ctx context.Context, challenge *models.Challenge) error
	Get(ctx context.Context, id string) (*models.Challenge, error)
	// FindByChannel returns the open challenge a channel is party to, as
	// initiator or as challenged side.
	FindByChannel(ctx context.Context, channelID string) (*models.Challenge, error)
	FindByGuild(ctx context.Context, guildID string) ([]models.Challenge, error)
	Delete(ctx context.Context, id string) error
}

type MatchStore interface {
	Create(ctx context.Context, match *models.Match) error
	Get(ctx context.Context, id string) (*models.Match, error)
	SetSubs(ctx context.Context, id string, subs []models.SubRequest) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

type BanStore interface {
	Put(ctx context.Context, ban *models.Ban) error
	Delete(ctx context.Context, guildID, userID string) error
	DeleteByGuild(ctx context.Context, guildID string) error
	Find(ctx context.Context, guildID, userID string) (*models.Ban, error)
}

type StatsStore interface {
	// IncrementGames bumps the match counter for each user, once per user.
	IncrementGames(ctx context.Context, userIDs []string, region string, size int) error
	GamesFor(ctx context.Context, userIDs []string) (map[string]int, error)
}

// Stores bundles every store over one database handle.
type Stores struct {
	Teams      TeamStore
	Lineups    LineupStore
	Queues     QueueStore
	Challenges ChallengeStore
	Matches    MatchStore
	Bans       BanStore
	Stats      StatsStore
}

// Open connects to postgres, migrates the schema and returns the bundle.
func Open(dsn string) (*Stores, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.Team{},
		&models.Lineup{},
		&models.Role{},
		&models.LineupQueue{},
		&models.Challenge{},
		&models.Match{},
		&models.Ban{},
		&models.PlayerStats{},
	); err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wires the gorm-backed stores over an existing handle.
func New(db *gorm.DB) *Stores {
	return &Stores{
		Teams:      &teamStore{db: db},
		Lineups:    &lineupStore{db: db},
		Queues:     &queueStore{db: db},
		Challenges: &challengeStore{db: db},
		Matches:    &matchStore{db: db},
		Bans:       &banStore{db: db},
		Stats:      &statsStore{db: db},
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
