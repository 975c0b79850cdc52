package models

import "time"

type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipActive   RelationshipStatus = "active"
	RelationshipDeclined RelationshipStatus = "declined"
)

// RelationshipRole identifies which seat of a relationship a party holds.
type RelationshipRole string

const (
	RoleCoach  RelationshipRole = "coach"
	RoleClient RelationshipRole = "client"
)

func (s RelationshipStatus) Valid() bool {
	switch s {
	case RelationshipPending, RelationshipActive, RelationshipDeclined:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition may leave the status.
func (s RelationshipStatus) Terminal() bool {
	return s == RelationshipActive || s == RelationshipDeclined
}

// CanTransition is the complete transition table: a pending record may
// resolve to active or declined, and nothing else ever moves.
func CanTransition(from, to RelationshipStatus) bool {
	if from != RelationshipPending {
		return false
	}
	return to == RelationshipActive || to == RelationshipDeclined
}

type Relationship struct {
	ID        int64              `json:"id"`
	CoachID   int64              `json:"coach_id"`
	ClientID  int64              `json:"client_id"`
	Status    RelationshipStatus `json:"status"`
	Initiator RelationshipRole   `json:"initiator"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// InitiatorUserID returns the id of the party that created the record.
func (r *Relationship) InitiatorUserID() int64 {
	if r.Initiator == RoleCoach {
		return r.CoachID
	}
	return r.ClientID
}

// ReceiverUserID returns the id of the party that holds response authority.
func (r *Relationship) ReceiverUserID() int64 {
	if r.Initiator == RoleCoach {
		return r.ClientID
	}
	return r.CoachID
}

func (r *Relationship) HasParty(userID int64) bool {
	return r.CoachID == userID || r.ClientID == userID
}

// RelationshipLists partitions a user's records by initiator-relative
// direction: a pending record is outgoing when the viewer created it,
// regardless of which seat they hold.
type RelationshipLists struct {
	PendingIncoming []Relationship `json:"pending_incoming"`
	PendingOutgoing []Relationship `json:"pending_outgoing"`
	Active          []Relationship `json:"active"`
}
