package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// In-memory stores mirroring the conditional-update semantics of the gorm
// layer, so the orchestration paths can be exercised without a database.

type memStores struct {
	mu         sync.Mutex
	teams      map[string]models.Team
	lineups    map[string]*models.Lineup
	queues     map[string]*models.LineupQueue
	challenges map[string]*models.Challenge
	matches    map[string]*models.Match
	bans       map[string]models.Ban
	stats      map[string]int // userID|region|size -> games
}

func newMemStores() (*store.Stores, *memStores) {
	m := &memStores{
		teams:      make(map[string]models.Team),
		lineups:    make(map[string]*models.Lineup),
		queues:     make(map[string]*models.LineupQueue),
		challenges: make(map[string]*models.Challenge),
		matches:    make(map[string]*models.Match),
		bans:       make(map[string]models.Ban),
		stats:      make(map[string]int),
	}
	return &store.Stores{
		Teams:      (*memTeams)(m),
		Lineups:    (*memLineups)(m),
		Queues:     (*memQueues)(m),
		Challenges: (*memChallenges)(m),
		Matches:    (*memMatches)(m),
		Bans:       (*memBans)(m),
		Stats:      (*memStats)(m),
	}, m
}

func copyLineup(l *models.Lineup) *models.Lineup {
	c := *l
	c.Roles = append([]models.Role(nil), l.Roles...)
	return &c
}

type memTeams memStores

func (m *memTeams) Upsert(_ context.Context, team *models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[team.GuildID] = *team
	return nil
}

func (m *memTeams) Get(_ context.Context, guildID string) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[guildID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &team, nil
}

func (m *memTeams) Delete(_ context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.teams, guildID)
	return nil
}

type memLineups memStores

func (m *memLineups) Create(_ context.Context, lineup *models.Lineup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineups[lineup.ChannelID] = copyLineup(lineup)
	return nil
}

func (m *memLineups) Get(_ context.Context, channelID string) (*models.Lineup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyLineup(lineup), nil
}

func (m *memLineups) Delete(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lineups, channelID)
	return nil
}

func (m *memLineups) ChannelsOfGuild(_ context.Context, guildID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, l := range m.lineups {
		if l.GuildID == guildID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memLineups) BeginPicking(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok || lineup.IsPicking {
		return store.ErrConflict
	}
	lineup.IsPicking = true
	return nil
}

func (m *memLineups) ClearPicking(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return store.ErrNotFound
	}
	lineup.IsPicking = false
	return nil
}

func (m *memLineups) SetLastNotification(_ context.Context, channelID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return store.ErrNotFound
	}
	lineup.LastNotificationTime = &at
	return nil
}

func (m *memLineups) roleAt(channelID, roleName string, lineupNumber int) *models.Role {
	lineup, ok := m.lineups[channelID]
	if !ok {
		return nil
	}
	for i := range lineup.Roles {
		r := &lineup.Roles[i]
		if r.Name == roleName && r.LineupNumber == lineupNumber {
			return r
		}
	}
	return nil
}

func (m *memLineups) AssignIfEmpty(_ context.Context, channelID, roleName string, lineupNumber int, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.roleAt(channelID, roleName, lineupNumber)
	if r == nil || r.UserID != nil {
		return store.ErrConflict
	}
	id := user.ID
	r.UserID, r.UserName = &id, user.Name
	return nil
}

func (m *memLineups) Swap(_ context.Context, channelID, fromRole string, fromNumber int, toRole string, toNumber int, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.roleAt(channelID, fromRole, fromNumber)
	to := m.roleAt(channelID, toRole, toNumber)
	if from == nil || from.UserID == nil || *from.UserID != user.ID {
		return store.ErrConflict
	}
	if to == nil || to.UserID != nil {
		return store.ErrConflict
	}
	from.UserID, from.UserName = nil, ""
	id := user.ID
	to.UserID, to.UserName = &id, user.Name
	return nil
}

func (m *memLineups) ClearRole(_ context.Context, channelID, roleName string, lineupNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.roleAt(channelID, roleName, lineupNumber)
	if r == nil || r.UserID == nil {
		return store.ErrNotFound
	}
	r.UserID, r.UserName = nil, ""
	return nil
}

func (m *memLineups) RemoveUser(_ context.Context, channelID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return store.ErrNotFound
	}
	removed := false
	for i := range lineup.Roles {
		r := &lineup.Roles[i]
		if r.UserID != nil && *r.UserID == userID {
			r.UserID, r.UserName = nil, ""
			removed = true
		}
	}
	if !removed {
		return store.ErrNotFound
	}
	return nil
}

func (m *memLineups) RemoveUsersEverywhere(_ context.Context, userIDs []string, exceptChannelID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		ids[id] = true
	}
	var touched []string
	for channelID, lineup := range m.lineups {
		if channelID == exceptChannelID {
			continue
		}
		hit := false
		for i := range lineup.Roles {
			r := &lineup.Roles[i]
			if r.UserID != nil && ids[*r.UserID] {
				r.UserID, r.UserName = nil, ""
				hit = true
			}
		}
		if hit {
			touched = append(touched, channelID)
		}
	}
	return touched, nil
}

func (m *memLineups) ResetAllSides(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range lineup.Roles {
		lineup.Roles[i].UserID, lineup.Roles[i].UserName = nil, ""
	}
	return nil
}

func (m *memLineups) RotateSides(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineup, ok := m.lineups[channelID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range lineup.Roles {
		r := &lineup.Roles[i]
		switch r.LineupNumber {
		case 1:
			r.UserID, r.UserName = nil, ""
			r.LineupNumber = 2
		case 2:
			r.LineupNumber = 1
		}
	}
	return nil
}

func (m *memLineups) BulkAssign(_ context.Context, channelID string, assignments []store.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assignments {
		r := m.roleAt(channelID, a.RoleName, a.LineupNumber)
		if r == nil {
			return store.ErrNotFound
		}
		id := a.User.ID
		r.UserID, r.UserName = &id, a.User.Name
	}
	return nil
}

type memQueues memStores

func (m *memQueues) Put(_ context.Context, entry *models.LineupQueue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	m.queues[entry.ChannelID] = &c
	return nil
}

func (m *memQueues) Get(_ context.Context, channelID string) (*models.LineupQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.queues[channelID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *entry
	return &c, nil
}

func (m *memQueues) Delete(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, channelID)
	return nil
}

func (m *memQueues) FindAvailable(_ context.Context, region, excludeChannelID string, size int, guildID string) ([]models.LineupQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LineupQueue
	for _, entry := range m.queues {
		if entry.Region != region || entry.Size != size || entry.ChannelID == excludeChannelID || entry.ChallengeID != nil {
			continue
		}
		if entry.Visibility == models.VisibilityTeam && entry.GuildID != guildID {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (m *memQueues) ReserveBoth(_ context.Context, channelA, channelB, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, okA := m.queues[channelA]
	b, okB := m.queues[channelB]
	if !okA || !okB || a.ChallengeID != nil || b.ChallengeID != nil {
		return store.ErrConflict
	}
	idA, idB := challengeID, challengeID
	a.ChallengeID, b.ChallengeID = &idA, &idB
	return nil
}

func (m *memQueues) Release(_ context.Context, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.queues {
		if entry.ChallengeID != nil && *entry.ChallengeID == challengeID {
			entry.ChallengeID = nil
		}
	}
	return nil
}

func (m *memQueues) SetMessages(_ context.Context, channelID string, handles []models.MessageHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.queues[channelID]
	if !ok {
		return store.ErrNotFound
	}
	entry.NotificationMessages = handles
	return nil
}

type memChallenges memStores

func (m *memChallenges) Create(_ context.Context, challenge *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *challenge
	m.challenges[challenge.ID] = &c
	return nil
}

func (m *memChallenges) Update(ctx context.Context, challenge *models.Challenge) error {
	return m.Create(ctx, challenge)
}

func (m *memChallenges) Get(_ context.Context, id string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *challenge
	return &c, nil
}

func (m *memChallenges) FindByChannel(_ context.Context, channelID string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, challenge := range m.challenges {
		if challenge.InitiatingChannelID == channelID || challenge.ChallengedChannelID == channelID {
			c := *challenge
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memChallenges) FindByGuild(_ context.Context, guildID string) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Challenge
	for _, challenge := range m.challenges {
		if challenge.InitiatingGuildID == guildID || challenge.ChallengedGuildID == guildID {
			out = append(out, *challenge)
		}
	}
	return out, nil
}

func (m *memChallenges) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, id)
	return nil
}

type memMatches memStores

func (m *memMatches) Create(_ context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *match
	m.matches[match.ID] = &c
	return nil
}

func (m *memMatches) Get(_ context.Context, id string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *match
	return &c, nil
}

func (m *memMatches) SetSubs(_ context.Context, id string, subs []models.SubRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return store.ErrNotFound
	}
	match.Subs = subs
	return nil
}

func (m *memMatches) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, match := range m.matches {
		if match.CreatedAt.Before(olderThan) {
			delete(m.matches, id)
			n++
		}
	}
	return n, nil
}

type memBans memStores

func (m *memBans) Put(_ context.Context, ban *models.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[ban.GuildID+"|"+ban.UserID] = *ban
	return nil
}

func (m *memBans) Delete(_ context.Context, guildID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := guildID + "|" + userID
	if _, ok := m.bans[key]; !ok {
		return store.ErrNotFound
	}
	delete(m.bans, key)
	return nil
}

func (m *memBans) DeleteByGuild(_ context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ban := range m.bans {
		if ban.GuildID == guildID {
			delete(m.bans, key)
		}
	}
	return nil
}

func (m *memBans) Find(_ context.Context, guildID, userID string) (*models.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ban, ok := m.bans[guildID+"|"+userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ban, nil
}

type memStats memStores

func (m *memStats) IncrementGames(_ context.Context, userIDs []string, region string, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		m.stats[statsKey(id, region, size)]++
	}
	return nil
}

func (m *memStats) GamesFor(_ context.Context, userIDs []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for key, games := range m.stats {
		for _, id := range userIDs {
			if len(key) > len(id) && key[:len(id)] == id && key[len(id)] == '|' {
				out[id] += games
			}
		}
	}
	return out, nil
}

func statsKey(userID, region string, size int) string {
	return userID + "|" + region + "|" + strconv.Itoa(size)
}

// recordingNotifier captures every obligation the service emits.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) find(e notify.Event) (notify.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Event == e {
			return r.sent[i], true
		}
	}
	return notify.Notification{}, false
}

func (r *recordingNotifier) events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, n := range r.sent {
		out = append(out, n.Event)
	}
	return out
}
