package models

import "time"

// EntitlementSnapshot is derived on every read and never persisted.
type EntitlementSnapshot struct {
	HasCoach          bool       `json:"has_coach"`
	EntriesCount      int        `json:"entries_count"`
	MaxFreeEntries    int        `json:"max_free_entries"`
	EntriesRemaining  int        `json:"entries_remaining"`
	CanCreateEntries  bool       `json:"can_create_entries"`
	CanAccessInsights bool       `json:"can_access_insights"`
	CoachRequested    bool       `json:"coach_requested"`
	CoachRequestDate  *time.Time `json:"coach_request_date"`
}
