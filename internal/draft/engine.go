package draft

import (
	"errors"
	"math/rand"
	"slices"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

var ErrWrongTurn = errors.New("not this captain's turn")
var ErrNotInPool = errors.New("player not in remaining pool")
var ErrDraftCompleted = errors.New("draft already completed")
var ErrNotEnoughPlayers = errors.New("not enough players for a draft")

// swappable in tests
var randIntn = rand.Intn

// PoolPlayer is one signup available to be picked. Goalkeeper marks users
// who occupied a GK slot before the draft reset the lineup.
type PoolPlayer struct {
	User       models.User
	Goalkeeper bool
	Games      int
}

// Slot mirrors one role slot while a side is being drafted.
type Slot struct {
	Name string
	Type models.RoleType
	Pos  int
	User *models.User
}

// Side is one half of the draft, led by its captain.
type Side struct {
	Number  int
	Captain models.User
	Slots   []Slot
}

// State is the full draft position. Apply never mutates its input; callers
// keep the returned state.
type State struct {
	ChannelID string
	Sides     [2]Side
	Pool      []PoolPlayer
	Turn      int // index into Sides, alternates strictly
	Done      bool
}

type CommandType string

const (
	CmdPick CommandType = "Pick"
)

type Command struct {
	Type         CommandType
	ActorID      string
	TargetUserID string
}

type EventType string

const (
	EvtPlayerPicked   EventType = "PlayerPicked"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtDraftCompleted EventType = "DraftCompleted"
)

type Event struct {
	Type EventType
	Side int
	User models.User
	Role string
}

// Placement is a finished assignment, written back to the lineup when the
// draft completes.
type Placement struct {
	RoleName     string
	LineupNumber int
	User         models.User
}

// NewState seeds a draft: selects captains from the pool, builds two empty
// sides from the slot template, places each captain into their first
// compatible slot and reconciles goalkeepers.
func NewState(channelID string, pool []PoolPlayer, template []models.Role) (State, error) {
	if len(pool) < 2 {
		return State{}, ErrNotEnoughPlayers
	}
	captains, rest := selectCaptains(pool)

	s := State{ChannelID: channelID, Pool: rest}
	for i := 0; i < 2; i++ {
		side := Side{Number: i + 1, Captain: captains[i].User}
		for _, r := range template {
			side.Slots = append(side.Slots, Slot{Name: r.Name, Type: r.Type, Pos: r.Pos})
		}
		s.Sides[i] = side
		seatPlayer(&s.Sides[i], captains[i].User, captains[i].Goalkeeper)
	}
	reconcileGoalkeepers(&s)
	// Seeding alone can exhaust the pool; such a draft has nothing to pick.
	if s.terminated() {
		s.distributeLeftovers()
		s.Done = true
	}
	return s, nil
}

// Apply processes one command against the draft state, returning the events
// it produced and the successor state.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Done {
		return nil, s, ErrDraftCompleted
	}
	if cmd.Type != CmdPick {
		return nil, s, errors.New("unsupported command")
	}

	side := &s.Sides[s.Turn]
	if side.Captain.ID != cmd.ActorID {
		return nil, s, ErrWrongTurn
	}

	idx := slices.IndexFunc(s.Pool, func(p PoolPlayer) bool { return p.User.ID == cmd.TargetUserID })
	if idx < 0 {
		return nil, s, ErrNotInPool
	}

	newState := s.clone()
	side = &newState.Sides[newState.Turn]
	picked := newState.Pool[idx]
	newState.Pool = slices.Delete(newState.Pool, idx, idx+1)

	role, ok := seatPlayer(side, picked.User, picked.Goalkeeper)
	if !ok {
		return nil, s, errors.New("no open slot on picking side")
	}

	events := []Event{{Type: EvtPlayerPicked, Side: side.Number, User: picked.User, Role: role}}

	if newState.terminated() {
		newState.distributeLeftovers()
		newState.Done = true
		events = append(events, Event{Type: EvtDraftCompleted})
		return events, newState, nil
	}

	newState.Turn = 1 - newState.Turn
	events = append(events, Event{Type: EvtTurnAdvanced})
	return events, newState, nil
}

// CurrentCaptain is whoever's pick it is.
func (s State) CurrentCaptain() models.User { return s.Sides[s.Turn].Captain }

// Placements flattens both sides into lineup assignments.
func (s State) Placements() []Placement {
	var out []Placement
	for _, side := range s.Sides {
		for _, slot := range side.Slots {
			if slot.User != nil {
				out = append(out, Placement{RoleName: slot.Name, LineupNumber: side.Number, User: *slot.User})
			}
		}
	}
	return out
}

// RestoreWithout reseats every remaining participant except one user,
// used when an abandoned draft returns its players to the lineup.
func (s State) RestoreWithout(userID string) []Placement {
	c := s.clone()
	for i := range c.Sides {
		for j, slot := range c.Sides[i].Slots {
			if slot.User != nil && slot.User.ID == userID {
				c.Sides[i].Slots[j].User = nil
			}
		}
	}
	c.Pool = slices.DeleteFunc(c.Pool, func(p PoolPlayer) bool { return p.User.ID == userID })
	c.distributeLeftovers()
	return c.Placements()
}

func (s State) clone() State {
	c := s
	c.Pool = slices.Clone(s.Pool)
	for i := range c.Sides {
		c.Sides[i].Slots = slices.Clone(s.Sides[i].Slots)
		for j, slot := range c.Sides[i].Slots {
			if slot.User != nil {
				u := *slot.User
				c.Sides[i].Slots[j].User = &u
			}
		}
	}
	return c
}

// Termination, checked after each pick: pool drained, the picking side
// fully slotted, or the picking side waiting only on a goalkeeper that no
// pool player can provide.
func (s State) terminated() bool {
	if len(s.Pool) == 0 {
		return true
	}
	side := s.Sides[s.Turn]
	if sideFull(side) || sideFull(s.Sides[1-s.Turn]) {
		return true
	}
	if missingOnlyGK(side) && !poolHasGK(s.Pool) {
		return true
	}
	return false
}

func (s *State) distributeLeftovers() {
	for _, p := range s.Pool {
		for i := range s.Sides {
			if _, ok := seatPlayer(&s.Sides[i], p.User, p.Goalkeeper); ok {
				break
			}
		}
	}
	s.Pool = nil
}

// seatPlayer puts a user into the side's first compatible open slot:
// goalkeepers go to the GK slot first, everyone else to the first open
// outfield slot, falling back to whatever is left.
func seatPlayer(side *Side, user models.User, goalkeeper bool) (string, bool) {
	if goalkeeper {
		if name, ok := fillSlot(side, true, user); ok {
			return name, true
		}
		return fillSlot(side, false, user)
	}
	if name, ok := fillSlot(side, false, user); ok {
		return name, true
	}
	return fillSlot(side, true, user)
}

func fillSlot(side *Side, goalkeeper bool, user models.User) (string, bool) {
	for i, slot := range side.Slots {
		if slot.User != nil {
			continue
		}
		if (slot.Type == models.RoleGoalkeeper) != goalkeeper {
			continue
		}
		u := user
		side.Slots[i].User = &u
		return slot.Name, true
	}
	return "", false
}

func sideFull(side Side) bool {
	for _, slot := range side.Slots {
		if slot.User == nil {
			return false
		}
	}
	return true
}

func missingOnlyGK(side Side) bool {
	for _, slot := range side.Slots {
		if slot.User == nil && slot.Type != models.RoleGoalkeeper {
			return false
		}
	}
	return !sideFull(side)
}

func poolHasGK(pool []PoolPlayer) bool {
	for _, p := range pool {
		if p.Goalkeeper {
			return true
		}
	}
	return false
}

func sideHasGK(side Side) bool {
	for _, slot := range side.Slots {
		if slot.Type == models.RoleGoalkeeper && slot.User != nil {
			return true
		}
	}
	return false
}

// When exactly one captain seeded into a GK slot and exactly one keeper
// remains in the pool, that keeper moves to the GK-less side up front so
// the picking order cannot strand a side without a goalkeeper.
func reconcileGoalkeepers(s *State) {
	gkless := -1
	seeded := 0
	for i := range s.Sides {
		if sideHasGK(s.Sides[i]) {
			seeded++
		} else {
			gkless = i
		}
	}
	if seeded != 1 {
		return
	}
	var keepers []int
	for i, p := range s.Pool {
		if p.Goalkeeper {
			keepers = append(keepers, i)
		}
	}
	if len(keepers) != 1 {
		return
	}
	p := s.Pool[keepers[0]]
	if _, ok := fillSlot(&s.Sides[gkless], true, p.User); ok {
		s.Pool = slices.Delete(s.Pool, keepers[0], keepers[0]+1)
	}
}

// selectCaptains prefers the two signups with the highest historical game
// counts, breaking ties randomly; when fewer than two signups have any
// history it falls back to a uniform pick.
func selectCaptains(pool []PoolPlayer) ([2]PoolPlayer, []PoolPlayer) {
	ranked := slices.Clone(pool)
	slices.SortFunc(ranked, func(a, b PoolPlayer) int { return b.Games - a.Games })

	withHistory := 0
	for _, p := range ranked {
		if p.Games > 0 {
			withHistory++
		}
	}

	var first, second PoolPlayer
	if withHistory >= 2 {
		first = pickTied(ranked, -1)
		second = pickTied(ranked, indexOf(ranked, first.User.ID))
	} else {
		i := randIntn(len(ranked))
		j := randIntn(len(ranked) - 1)
		if j >= i {
			j++
		}
		first, second = ranked[i], ranked[j]
	}

	rest := make([]PoolPlayer, 0, len(pool)-2)
	for _, p := range pool {
		if p.User.ID != first.User.ID && p.User.ID != second.User.ID {
			rest = append(rest, p)
		}
	}
	return [2]PoolPlayer{first, second}, rest
}

// pickTied selects among the best-ranked players sharing the top remaining
// game count, skipping one already-chosen index.
func pickTied(ranked []PoolPlayer, skip int) PoolPlayer {
	best := -1
	var tied []PoolPlayer
	for i, p := range ranked {
		if i == skip {
			continue
		}
		if best < 0 {
			best = p.Games
		}
		if p.Games == best {
			tied = append(tied, p)
		}
	}
	return tied[randIntn(len(tied))]
}

func indexOf(pool []PoolPlayer, userID string) int {
	return slices.IndexFunc(pool, func(p PoolPlayer) bool { return p.User.ID == userID })
}
