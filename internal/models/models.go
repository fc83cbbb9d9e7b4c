package models

import (
	"slices"
	"strings"
	"time"
)

type LineupType string

const (
	LineupTypeTeam     LineupType = "TEAM"
	LineupTypeMix      LineupType = "MIX"
	LineupTypeCaptains LineupType = "CAPTAINS"
)

type Visibility string

const (
	VisibilityPublic Visibility = "PUBLIC"
	VisibilityTeam   Visibility = "TEAM"
)

type RoleType string

const (
	RoleAttacker   RoleType = "attacker"
	RoleMidfielder RoleType = "midfielder"
	RoleDefender   RoleType = "defender"
	RoleGoalkeeper RoleType = "goalkeeper"
)

// MinSizeForOptionalGK is the roster size above which a lineup may queue
// without a goalkeeper. Below or at this size the GK slot counts like any
// other slot.
const MinSizeForOptionalGK = 3

// MercPrefix marks guest stand-ins signed manually into a slot. Mercenaries
// are exempt from the one-slot-per-user rule and the duplicate-player check.
const MercPrefix = "merc:"

// User is the occupant of a role slot. IDs are opaque platform identifiers.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u User) IsMerc() bool { return strings.HasPrefix(u.ID, MercPrefix) }

// Team is a community record, one per guild.
type Team struct {
	GuildID   string `gorm:"primaryKey"`
	Region    string `gorm:"index"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lineup is a roster bound 1:1 to a channel. Its role slots are a fixed
// template generated at creation; only the occupants change afterwards.
type Lineup struct {
	ChannelID            string `gorm:"primaryKey"`
	GuildID              string `gorm:"index"`
	Size                 int
	Type                 LineupType
	Visibility           Visibility
	AutoSearch           bool
	IsPicking            bool
	LastNotificationTime *time.Time
	Roles                []Role `gorm:"foreignKey:ChannelID;references:ChannelID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Role is a named position slot. MIX and CAPTAINS lineups carry two sets of
// slots distinguished by LineupNumber; TEAM lineups only use number 1.
type Role struct {
	ID           uint   `gorm:"primaryKey"`
	ChannelID    string `gorm:"uniqueIndex:idx_role_slot"`
	Name         string `gorm:"uniqueIndex:idx_role_slot"`
	LineupNumber int    `gorm:"uniqueIndex:idx_role_slot"`
	Type         RoleType
	Pos          int
	UserID       *string `gorm:"index"`
	UserName     string
}

func (r Role) Occupied() bool { return r.UserID != nil }

// MessageHandle references a notification message posted to the external
// chat layer, kept so the message can be retracted later.
type MessageHandle struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// LineupQueue announces a lineup searching for an opponent. The lineup is
// captured by value at publish time; later roster edits do not bleed into
// the queue entry. At most one entry exists per channel.
type LineupQueue struct {
	ChannelID            string `gorm:"primaryKey"`
	GuildID              string `gorm:"index"`
	Region               string `gorm:"index"`
	Size                 int
	Visibility           Visibility
	ChallengeID          *string         `gorm:"index"`
	Lineup               LineupSnapshot  `gorm:"serializer:json"`
	NotificationMessages []MessageHandle `gorm:"serializer:json"`
	CreatedAt            time.Time
}

func (q LineupQueue) Reserved() bool { return q.ChallengeID != nil }

// Challenge is a two-sided negotiation between two queue entries. Both
// entries stay reserved under the challenge id for its whole lifetime.
type Challenge struct {
	ID                  string `gorm:"primaryKey"`
	InitiatedBy         User   `gorm:"serializer:json"`
	InitiatingChannelID string `gorm:"uniqueIndex"`
	ChallengedChannelID string `gorm:"uniqueIndex"`
	InitiatingGuildID   string `gorm:"index"`
	ChallengedGuildID   string `gorm:"index"`
	InitiatingLineup    LineupSnapshot `gorm:"serializer:json"`
	ChallengedLineup    LineupSnapshot `gorm:"serializer:json"`
	InitiatingMessage   *MessageHandle `gorm:"serializer:json"`
	ChallengedMessage   *MessageHandle `gorm:"serializer:json"`
	CreatedAt           time.Time
}

// SubRequest is a standby replacement slot on a finalized match.
type SubRequest struct {
	RoleName    string    `json:"roleName"`
	RequestedBy User      `json:"requestedBy"`
	AcceptedBy  *User     `json:"acceptedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Match is the immutable record of a finalized game. Only the subs list
// grows after creation; the record is purged after the retention window.
type Match struct {
	ID            string `gorm:"primaryKey"`
	Region        string
	Size          int
	Schedule      time.Time
	FirstLineup   LineupSnapshot  `gorm:"serializer:json"`
	SecondLineup  *LineupSnapshot `gorm:"serializer:json"`
	LobbyName     string
	LobbyPassword string
	Subs          []SubRequest `gorm:"serializer:json"`
	CreatedAt     time.Time `gorm:"index"`
}

// Ban excludes a user from matchmaking actions in one guild, optionally
// until an expiry time.
type Ban struct {
	GuildID   string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
	Reason    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (b Ban) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// PlayerStats counts finalized matches per user, region and roster size.
type PlayerStats struct {
	UserID    string `gorm:"primaryKey"`
	Region    string `gorm:"primaryKey"`
	Size      int    `gorm:"primaryKey"`
	Games     int
	UpdatedAt time.Time
}

// SideRoles returns the slots of one side ordered by display position.
func (l *Lineup) SideRoles(lineupNumber int) []Role {
	out := make([]Role, 0, l.Size)
	for _, r := range l.Roles {
		if r.LineupNumber == lineupNumber {
			out = append(out, r)
		}
	}
	sortRoles(out)
	return out
}

// FindRole looks a slot up by name within one side.
func (l *Lineup) FindRole(name string, lineupNumber int) (Role, bool) {
	for _, r := range l.Roles {
		if r.LineupNumber == lineupNumber && strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Role{}, false
}

// RoleOfUser finds the slot a user currently occupies anywhere in the
// lineup, across both sides.
func (l *Lineup) RoleOfUser(userID string) (Role, bool) {
	for _, r := range l.Roles {
		if r.UserID != nil && *r.UserID == userID {
			return r, true
		}
	}
	return Role{}, false
}

// SignedUsers returns the occupants of one side, no mercenary filtering.
func (l *Lineup) SignedUsers(lineupNumber int) []User {
	var out []User
	for _, r := range l.SideRoles(lineupNumber) {
		if r.UserID != nil {
			out = append(out, User{ID: *r.UserID, Name: r.UserName})
		}
	}
	return out
}

// NumberOfSides is 2 for MIX and CAPTAINS lineups, 1 for TEAM.
func (l *Lineup) NumberOfSides() int {
	if l.Type == LineupTypeMix || l.Type == LineupTypeCaptains {
		return 2
	}
	return 1
}

// IsAllowedToJoinQueue reports whether side 1 is complete enough to search:
// every non-goalkeeper slot filled, and the goalkeeper slot filled unless
// the roster is large enough for the GK-optional rule.
func (l *Lineup) IsAllowedToJoinQueue() bool {
	return sideReady(l.SideRoles(1), l.Size)
}

// IsFullForDraft reports whether every side of a CAPTAINS lineup is
// complete under the queue-readiness rule, which triggers the draft.
func (l *Lineup) IsFullForDraft() bool {
	for n := 1; n <= l.NumberOfSides(); n++ {
		if !sideReady(l.SideRoles(n), l.Size) {
			return false
		}
	}
	return true
}

func sideReady(roles []Role, size int) bool {
	for _, r := range roles {
		if r.Occupied() {
			continue
		}
		if r.Type == RoleGoalkeeper && size > MinSizeForOptionalGK {
			continue
		}
		return false
	}
	return true
}

func sortRoles(roles []Role) {
	slices.SortFunc(roles, func(a, b Role) int { return a.Pos - b.Pos })
}
