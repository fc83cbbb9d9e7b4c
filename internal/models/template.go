package models

type slotDef struct {
	Name string
	Type RoleType
}

// Slot templates per roster size. Fixed at lineup creation; runtime code
// only ever changes occupants, never the slot list itself.
var slotTemplates = map[int][]slotDef{
	1: {
		{"CF", RoleAttacker},
	},
	2: {
		{"CF", RoleAttacker},
		{"GK", RoleGoalkeeper},
	},
	3: {
		{"CF", RoleAttacker},
		{"CM", RoleMidfielder},
		{"GK", RoleGoalkeeper},
	},
	4: {
		{"CF", RoleAttacker},
		{"CM", RoleMidfielder},
		{"CB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	5: {
		{"LW", RoleAttacker},
		{"RW", RoleAttacker},
		{"CM", RoleMidfielder},
		{"CB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	6: {
		{"LW", RoleAttacker},
		{"RW", RoleAttacker},
		{"CM", RoleMidfielder},
		{"LB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	7: {
		{"LW", RoleAttacker},
		{"RW", RoleAttacker},
		{"LCM", RoleMidfielder},
		{"RCM", RoleMidfielder},
		{"LB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	8: {
		{"LW", RoleAttacker},
		{"CF", RoleAttacker},
		{"RW", RoleAttacker},
		{"LCM", RoleMidfielder},
		{"RCM", RoleMidfielder},
		{"LB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	9: {
		{"LW", RoleAttacker},
		{"CF", RoleAttacker},
		{"RW", RoleAttacker},
		{"LCM", RoleMidfielder},
		{"RCM", RoleMidfielder},
		{"LB", RoleDefender},
		{"CB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	10: {
		{"LW", RoleAttacker},
		{"CF", RoleAttacker},
		{"RW", RoleAttacker},
		{"LM", RoleMidfielder},
		{"CM", RoleMidfielder},
		{"RM", RoleMidfielder},
		{"LB", RoleDefender},
		{"CB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
	11: {
		{"LW", RoleAttacker},
		{"CF", RoleAttacker},
		{"RW", RoleAttacker},
		{"LM", RoleMidfielder},
		{"LCM", RoleMidfielder},
		{"RCM", RoleMidfielder},
		{"RM", RoleMidfielder},
		{"LB", RoleDefender},
		{"CB", RoleDefender},
		{"RB", RoleDefender},
		{"GK", RoleGoalkeeper},
	},
}

// MaxLineupSize is the largest roster size a template exists for.
const MaxLineupSize = 11

// ValidSize reports whether a roster size has a slot template.
func ValidSize(size int) bool {
	_, ok := slotTemplates[size]
	return ok
}

// NewLineup builds a lineup with its full role template. MIX and CAPTAINS
// lineups get two sides of slots, TEAM gets one.
func NewLineup(channelID, guildID string, size int, lineupType LineupType, visibility Visibility, autoSearch bool) *Lineup {
	l := &Lineup{
		ChannelID:  channelID,
		GuildID:    guildID,
		Size:       size,
		Type:       lineupType,
		Visibility: visibility,
		AutoSearch: autoSearch,
	}
	for n := 1; n <= l.NumberOfSides(); n++ {
		l.Roles = append(l.Roles, RolesForSide(channelID, size, n)...)
	}
	return l
}

// RolesForSide generates one side's empty slots from the size template.
func RolesForSide(channelID string, size, lineupNumber int) []Role {
	defs := slotTemplates[size]
	roles := make([]Role, 0, len(defs))
	for i, d := range defs {
		roles = append(roles, Role{
			ChannelID:    channelID,
			Name:         d.Name,
			Type:         d.Type,
			LineupNumber: lineupNumber,
			Pos:          i,
		})
	}
	return roles
}
