// Package types holds the wire shapes shared by the HTTP action surface
// and the websocket notification stream.
package types

import "time"

// Client -> Server action requests. User ids, channel ids and guild ids
// are opaque strings supplied by the platform layer.

type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RegisterTeamRequest struct {
	GuildID string `json:"guildId"`
	Name    string `json:"name"`
	Region  string `json:"region"`
}

type RenameTeamRequest struct {
	Name string `json:"name"`
}

type ConfigureLineupRequest struct {
	GuildID    string `json:"guildId"`
	Size       int    `json:"size"`
	Type       string `json:"type"`       // TEAM | MIX | CAPTAINS
	Visibility string `json:"visibility"` // PUBLIC | TEAM
	AutoSearch bool   `json:"autoSearch"`
}

type SignUpRequest struct {
	User         UserRef `json:"user"`
	RoleName     string  `json:"roleName"`
	LineupNumber int     `json:"lineupNumber"`
}

type LeaveRequest struct {
	User UserRef `json:"user"`
}

type SearchRequest struct {
	User UserRef `json:"user"`
}

type IssueChallengeRequest struct {
	User            UserRef `json:"user"`
	TargetChannelID string  `json:"targetChannelId"`
}

type ChallengeActionRequest struct {
	User UserRef `json:"user"`
}

type DraftPickRequest struct {
	User         UserRef `json:"user"`
	PickedUserID string  `json:"pickedUserId"`
}

type RequestSubRequest struct {
	User     UserRef `json:"user"`
	RoleName string  `json:"roleName"`
}

type AcceptSubRequest struct {
	User UserRef `json:"user"`
}

type BanRequest struct {
	UserID    string     `json:"userId"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Server -> Client.

type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerMessage frames one websocket notification.
type ServerMessage struct {
	Type     string         `json:"type"` // "Notification" | "Error"
	Event    string         `json:"event,omitempty"`
	Channels []string       `json:"channels,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
}
