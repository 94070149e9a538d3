package model

import "time"

// Company is owned by the platform at large; this subsystem only reads the
// identity/contact fields and mutates the two entitlement tracks. The tracks
// are independent: activating one never touches the other.
type Company struct {
	ID    string // UUID
	Name  string
	Email string // notification target

	SubscriptionPlan   string
	SubscriptionExpiry *time.Time

	HasScoutAccess    bool
	ScoutAccessExpiry *time.Time
}

type EntitlementTrack string

const (
	EntitlementSubscription EntitlementTrack = "subscription"
	EntitlementScoutAccess  EntitlementTrack = "scout_access"
)
