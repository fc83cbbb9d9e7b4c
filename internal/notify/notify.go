// Package notify defines the obligations the engine emits towards the
// chat-platform layer: a set of channel ids and a payload to render. How
// the payload turns into messages or embeds is the platform layer's
// business.
package notify

import (
	"context"

	"go.uber.org/zap"
)

type Event string

const (
	EventTeamSearching     Event = "team_searching"
	EventSearchStopped     Event = "search_stopped"
	EventChallengePending  Event = "challenge_pending"
	EventChallengeCanceled Event = "challenge_canceled"
	EventMatchReady        Event = "match_ready"
	EventPlayerLeft        Event = "player_left"
	EventLineupUpdated     Event = "lineup_updated"
	EventDraftStarted      Event = "draft_started"
	EventDraftPick         Event = "draft_pick"
	EventDraftAborted      Event = "draft_aborted"
	EventSubRequested      Event = "sub_requested"
	EventSubAccepted       Event = "sub_accepted"
)

// Notification is one obligation: deliver the payload to every channel.
type Notification struct {
	Channels []string       `json:"channels"`
	Event    Event          `json:"event"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Log is a Notifier that only records obligations, used when no websocket
// subscriber transport is wired and in tests.
type Log struct {
	Logger *zap.Logger
}

func (l *Log) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("notification",
		zap.String("event", string(n.Event)),
		zap.Strings("channels", n.Channels),
		zap.String("message", n.Message))
	return nil
}

// Multi fans one obligation out to several notifiers, returning the first
// error after trying them all.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, nf := range m {
		if err := nf.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
