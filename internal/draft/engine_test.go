package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

// fixRand makes captain selection deterministic: every call returns the
// next scripted value.
func fixRand(t *testing.T, values ...int) {
	t.Helper()
	orig := randIntn
	i := 0
	randIntn = func(n int) int {
		require.Less(t, i, len(values), "randIntn called more often than scripted")
		v := values[i]
		i++
		require.Less(t, v, n)
		return v
	}
	t.Cleanup(func() { randIntn = orig })
}

func player(id string, gk bool, games int) PoolPlayer {
	return PoolPlayer{User: models.User{ID: id, Name: id}, Goalkeeper: gk, Games: games}
}

func template(size int) []models.Role {
	return models.RolesForSide("chan", size, 1)
}

func pick(t *testing.T, s State, actorID, targetID string) State {
	t.Helper()
	_, next, err := Apply(s, Command{Type: CmdPick, ActorID: actorID, TargetUserID: targetID})
	require.NoError(t, err)
	return next
}

func sideOf(s State, userID string) int {
	for _, side := range s.Sides {
		for _, slot := range side.Slots {
			if slot.User != nil && slot.User.ID == userID {
				return side.Number
			}
		}
	}
	return 0
}

func slotOf(t *testing.T, s State, userID string) Slot {
	t.Helper()
	for _, side := range s.Sides {
		for _, slot := range side.Slots {
			if slot.User != nil && slot.User.ID == userID {
				return slot
			}
		}
	}
	t.Fatalf("user %s not seated", userID)
	return Slot{}
}

func TestNewStateRequiresTwoPlayers(t *testing.T) {
	_, err := NewState("chan", []PoolPlayer{player("a", false, 0)}, template(3))
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestCaptainSelectionPrefersGameHistory(t *testing.T) {
	// Two clear leaders by games, no ties: both tie-break draws pick index 0.
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("vet1", false, 40),
		player("vet2", false, 25),
		player("fresh1", false, 0),
		player("fresh2", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)

	captains := map[string]bool{s.Sides[0].Captain.ID: true, s.Sides[1].Captain.ID: true}
	assert.True(t, captains["vet1"])
	assert.True(t, captains["vet2"])
	assert.Len(t, s.Pool, 2)
}

func TestCaptainSelectionFallsBackToRandom(t *testing.T) {
	fixRand(t, 1, 1) // i=1, j=1 -> bumped to 2
	pool := []PoolPlayer{
		player("a", false, 0),
		player("b", false, 0),
		player("c", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)
	assert.Equal(t, "b", s.Sides[0].Captain.ID)
	assert.Equal(t, "c", s.Sides[1].Captain.ID)
	require.Len(t, s.Pool, 1)
	assert.Equal(t, "a", s.Pool[0].User.ID)
}

func TestGoalkeeperCaptainSeedsIntoGKSlot(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("keeper", true, 10),
		player("striker", false, 5),
		player("mid", false, 0),
		player("sweeper", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)

	assert.Equal(t, "GK", slotOf(t, s, "keeper").Name)
	assert.NotEqual(t, "GK", slotOf(t, s, "striker").Name)
}

func TestPickOrderStrictlyAlternates(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 20),
		player("capB", false, 15),
		player("p1", false, 0),
		player("p2", false, 0),
		player("p3", false, 0),
		player("p4", false, 0),
	}
	s, err := NewState("chan", pool, template(4))
	require.NoError(t, err)

	first := s.CurrentCaptain()
	second := s.Sides[1-s.Turn].Captain

	// The off-turn captain is rejected outright.
	_, _, err = Apply(s, Command{Type: CmdPick, ActorID: second.ID, TargetUserID: "p1"})
	assert.ErrorIs(t, err, ErrWrongTurn)

	s = pick(t, s, first.ID, "p1")
	assert.Equal(t, second.ID, s.CurrentCaptain().ID, "turn must pass after a pick")

	_, _, err = Apply(s, Command{Type: CmdPick, ActorID: first.ID, TargetUserID: "p2"})
	assert.ErrorIs(t, err, ErrWrongTurn)

	s = pick(t, s, second.ID, "p2")
	assert.Equal(t, first.ID, s.CurrentCaptain().ID)
}

func TestPickRejectsUnknownTarget(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 20),
		player("capB", false, 15),
		player("p1", false, 0),
		player("p2", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)

	_, _, err = Apply(s, Command{Type: CmdPick, ActorID: s.CurrentCaptain().ID, TargetUserID: "ghost"})
	assert.ErrorIs(t, err, ErrNotInPool)

	// Picking a captain is the same error: captains left the pool at seeding.
	_, _, err = Apply(s, Command{Type: CmdPick, ActorID: s.CurrentCaptain().ID, TargetUserID: "capB"})
	assert.ErrorIs(t, err, ErrNotInPool)
}

func TestApplyNeverMutatesInput(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 20),
		player("capB", false, 15),
		player("p1", false, 0),
		player("p2", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)

	before := len(s.Pool)
	_ = pick(t, s, s.CurrentCaptain().ID, "p1")
	assert.Len(t, s.Pool, before, "original state must stay untouched")
	assert.Equal(t, 0, sideOf(s, "p1"))
}

// Size-3 draft with six signups and a single goalkeeper: when captain A
// picks the keeper, the keeper lands in A's GK slot. The moment captain
// B's side is waiting only on a goalkeeper nobody can provide, the draft
// ends and the leftover pool is distributed.
func TestSingleKeeperDraftCompletes(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 30),
		player("capB", false, 20),
		player("keeper", true, 0),
		player("out1", false, 0),
		player("out2", false, 0),
		player("out3", false, 0),
	}
	s, err := NewState("chan", pool, template(3))
	require.NoError(t, err)

	capA := s.CurrentCaptain()
	capB := s.Sides[1-s.Turn].Captain
	sideA := s.Turn + 1

	s = pick(t, s, capA.ID, "keeper")
	assert.Equal(t, "GK", slotOf(t, s, "keeper").Name)
	assert.Equal(t, sideA, sideOf(s, "keeper"))

	// After capB's pick their side misses only its GK slot and no keeper
	// is left in the pool, so every remaining pick would be forced.
	events, final, err := Apply(s, Command{Type: CmdPick, ActorID: capB.ID, TargetUserID: "out1"})
	require.NoError(t, err)
	assert.True(t, final.Done)
	assert.Equal(t, EvtDraftCompleted, events[len(events)-1].Type)
	assert.Empty(t, final.Pool)

	// Everyone is seated somewhere.
	for _, id := range []string{"capA", "capB", "keeper", "out1", "out2", "out3"} {
		assert.NotEqual(t, 0, sideOf(final, id), "user %s", id)
	}

	_, _, err = Apply(final, Command{Type: CmdPick, ActorID: capA.ID, TargetUserID: "out1"})
	assert.ErrorIs(t, err, ErrDraftCompleted)
}

func TestDraftTerminatesWhenOnlyGKSlotOpenAndNoKeeperLeft(t *testing.T) {
	fixRand(t, 0, 0)
	// Size 4, six signups, no goalkeepers at all. Once a side's outfield
	// is full, only its GK slot stays open and no pool player can provide
	// it; the rest of the draft would be forced picks.
	pool := []PoolPlayer{
		player("capA", false, 30),
		player("capB", false, 20),
		player("out1", false, 0),
		player("out2", false, 0),
		player("out3", false, 0),
		player("out4", false, 0),
	}
	s, err := NewState("chan", pool, template(4))
	require.NoError(t, err)

	capA := s.CurrentCaptain()
	capB := s.Sides[1-s.Turn].Captain

	s = pick(t, s, capA.ID, "out1")
	s = pick(t, s, capB.ID, "out2")

	events, final, err := Apply(s, Command{Type: CmdPick, ActorID: capA.ID, TargetUserID: "out3"})
	require.NoError(t, err)
	assert.True(t, final.Done, "no keeper can fill the last open slot")
	assert.Equal(t, EvtDraftCompleted, events[len(events)-1].Type)
	assert.NotEqual(t, 0, sideOf(final, "out4"), "leftover must be auto-seated")
	assert.Empty(t, final.Pool)
}

func TestSeedingAloneCanCompleteTheDraft(t *testing.T) {
	fixRand(t, 0, 0)
	// Size 1: both signups become captains and fill both slots, leaving
	// nothing to pick.
	pool := []PoolPlayer{
		player("capA", false, 10),
		player("capB", false, 5),
	}
	s, err := NewState("chan", pool, template(1))
	require.NoError(t, err)
	assert.True(t, s.Done)
	assert.NotEqual(t, 0, sideOf(s, "capA"))
	assert.NotEqual(t, 0, sideOf(s, "capB"))
}

func TestGoalkeeperReconciliation(t *testing.T) {
	t.Run("lone keeper moves to the keeperless side", func(t *testing.T) {
		fixRand(t, 0, 0)
		pool := []PoolPlayer{
			player("gkCap", true, 30),
			player("fieldCap", false, 20),
			player("keeper", true, 0),
			player("out1", false, 0),
			player("out2", false, 0),
			player("out3", false, 0),
		}
		s, err := NewState("chan", pool, template(3))
		require.NoError(t, err)

		assert.Equal(t, "GK", slotOf(t, s, "gkCap").Name)
		assert.Equal(t, "GK", slotOf(t, s, "keeper").Name)
		assert.NotEqual(t, sideOf(s, "gkCap"), sideOf(s, "keeper"))
		assert.Len(t, s.Pool, 3, "reconciled keeper leaves the pool")
	})

	t.Run("two pool keepers stay pickable", func(t *testing.T) {
		fixRand(t, 0, 0)
		pool := []PoolPlayer{
			player("gkCap", true, 30),
			player("fieldCap", false, 20),
			player("keeper1", true, 0),
			player("keeper2", true, 0),
			player("out1", false, 0),
			player("out2", false, 0),
		}
		s, err := NewState("chan", pool, template(3))
		require.NoError(t, err)
		assert.Len(t, s.Pool, 4, "ambiguous keepers are left to the captains")
	})
}

func TestPlacements(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 10),
		player("capB", false, 5),
		player("keeper1", true, 0),
		player("keeper2", true, 0),
	}
	s, err := NewState("chan", pool, template(2))
	require.NoError(t, err)
	require.False(t, s.Done)

	_, final, err := Apply(s, Command{Type: CmdPick, ActorID: s.CurrentCaptain().ID, TargetUserID: "keeper1"})
	require.NoError(t, err)
	require.True(t, final.Done)

	placements := final.Placements()
	assert.Len(t, placements, 4)
	seen := make(map[string]bool)
	for _, p := range placements {
		assert.Contains(t, []int{1, 2}, p.LineupNumber)
		assert.False(t, seen[p.User.ID], "user %s placed twice", p.User.ID)
		seen[p.User.ID] = true
	}
}

func TestRestoreWithoutDropsUserAndReseatsPool(t *testing.T) {
	fixRand(t, 0, 0)
	pool := []PoolPlayer{
		player("capA", false, 10),
		player("capB", false, 5),
		player("keeper", true, 0),
		player("p2", false, 0),
	}
	s, err := NewState("chan", pool, template(2))
	require.NoError(t, err)
	require.False(t, s.Done)

	timedOut := s.CurrentCaptain()
	placements := s.RestoreWithout(timedOut.ID)

	ids := make(map[string]bool)
	for _, p := range placements {
		ids[p.User.ID] = true
	}
	assert.False(t, ids[timedOut.ID], "timed-out captain must not be restored")
	assert.True(t, ids["keeper"], "pool players are reseated")
	assert.True(t, ids["p2"])
	assert.True(t, ids[s.Sides[1-s.Turn].Captain.ID], "the other captain stays seated")
}
