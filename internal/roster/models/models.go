// Package models defines the roster entities mutated under the cutoff gate.
package models

import "time"

// Team is a roster with a capacity bound. ContestMaxMembers, when set,
// overrides MaxMembers for the contest the team is registered in.
type Team struct {
	ID                int64
	Name              string
	ContingentID      int64
	MaxMembers        int
	ContestMaxMembers int
	ContestName       string
	Members           []Member
}

// Capacity is the effective member limit; 0 means unbounded.
func (t Team) Capacity() int {
	if t.ContestMaxMembers > 0 {
		return t.ContestMaxMembers
	}
	return t.MaxMembers
}

// HasMember reports whether the contestant already sits on the roster.
func (t Team) HasMember(contestantID int64) bool {
	for _, m := range t.Members {
		if m.ContestantID == contestantID {
			return true
		}
	}
	return false
}

// Member is one roster seat.
type Member struct {
	ID           int64
	TeamID       int64
	ContestantID int64
	Name         string
	Role         string
	JoinedAt     time.Time
}

// Contestant is the subset of the contestant entity roster validation needs.
type Contestant struct {
	ID           int64
	Name         string
	ContingentID int64
}
