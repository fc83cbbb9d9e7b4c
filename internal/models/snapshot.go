package models

// LineupSnapshot is a lineup captured by value. Queue entries, challenges
// and matches embed these so later roster edits never reach back into a
// published or finalized record.
type LineupSnapshot struct {
	ChannelID string         `json:"channelId"`
	GuildID   string         `json:"guildId"`
	TeamName  string         `json:"teamName"`
	Region    string         `json:"region"`
	Size      int            `json:"size"`
	Type      LineupType     `json:"type"`
	Roles     []RoleSnapshot `json:"roles"`
}

type RoleSnapshot struct {
	Name         string   `json:"name"`
	Type         RoleType `json:"type"`
	LineupNumber int      `json:"lineupNumber"`
	Pos          int      `json:"pos"`
	User         *User    `json:"user,omitempty"`
}

// Snapshot copies the lineup's current occupancy into a value snapshot.
func (l *Lineup) Snapshot(team Team) LineupSnapshot {
	s := LineupSnapshot{
		ChannelID: l.ChannelID,
		GuildID:   l.GuildID,
		TeamName:  team.Name,
		Region:    team.Region,
		Size:      l.Size,
		Type:      l.Type,
	}
	for n := 1; n <= l.NumberOfSides(); n++ {
		for _, r := range l.SideRoles(n) {
			rs := RoleSnapshot{Name: r.Name, Type: r.Type, LineupNumber: r.LineupNumber, Pos: r.Pos}
			if r.UserID != nil {
				rs.User = &User{ID: *r.UserID, Name: r.UserName}
			}
			s.Roles = append(s.Roles, rs)
		}
	}
	return s
}

// PrimaryUserIDs returns the user ids occupying the snapshot's first side,
// mercenaries excluded. This is the set the duplicate-player check compares.
func (s LineupSnapshot) PrimaryUserIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, r := range s.Roles {
		if r.LineupNumber != 1 || r.User == nil || r.User.IsMerc() {
			continue
		}
		ids[r.User.ID] = true
	}
	return ids
}

// PrimaryUsers returns the occupants of the first side, mercenaries
// excluded. For a challenge match only this side plays.
func (s LineupSnapshot) PrimaryUsers() []User {
	var out []User
	for _, r := range s.Roles {
		if r.LineupNumber != 1 || r.User == nil || r.User.IsMerc() {
			continue
		}
		out = append(out, *r.User)
	}
	return out
}

// AllUsers returns every occupant across both sides, mercenaries excluded.
func (s LineupSnapshot) AllUsers() []User {
	var out []User
	seen := make(map[string]bool)
	for _, r := range s.Roles {
		if r.User == nil || r.User.IsMerc() || seen[r.User.ID] {
			continue
		}
		seen[r.User.ID] = true
		out = append(out, *r.User)
	}
	return out
}
