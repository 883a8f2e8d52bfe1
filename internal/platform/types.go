package platform

import "time"

// InstanceSummary is one live instance returned by the group instance
// listing endpoint. Location is the composite worldId:instanceId key used
// to match against local activity events.
type InstanceSummary struct {
	Location    string `json:"location"`
	World       World  `json:"world"`
	InstanceID  string `json:"instanceId"`
	MemberCount int    `json:"memberCount"`
}

// World identifies the world an instance runs in.
type World struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProfile is the full profile fetched for join-request evaluation.
type UserProfile struct {
	ID                    string    `json:"id"`
	DisplayName           string    `json:"displayName"`
	Bio                   string    `json:"bio"`
	StatusDescription     string    `json:"statusDescription"`
	Tags                  []string  `json:"tags"`
	AgeVerificationStatus string    `json:"ageVerificationStatus"`
	DateJoined            time.Time `json:"date_joined"`
}

// AgeVerified reports whether the platform has verified this account's age.
func (p *UserProfile) AgeVerified() bool {
	return p.AgeVerificationStatus == "18+" || p.AgeVerificationStatus == "verified"
}

// AccountAgeDays returns the account age in whole days, or false when the
// join date is unknown.
func (p *UserProfile) AccountAgeDays(now time.Time) (int, bool) {
	if p.DateJoined.IsZero() {
		return 0, false
	}

	return int(now.Sub(p.DateJoined).Hours() / 24), true
}

// JoinRequestAction is the moderation verdict sent back to the platform.
type JoinRequestAction string

const (
	ActionAccept JoinRequestAction = "accept"
	ActionReject JoinRequestAction = "reject"
)

// MessageSlot is one entry of the platform's indexed invite-message table.
type MessageSlot struct {
	ID              int       `json:"id"`
	Message         string    `json:"message"`
	UpdatedAt       time.Time `json:"updatedAt"`
	RemainingResets int       `json:"remainingCooldownMinutes"`
}

// InviteRequest targets the operator's own account with an invite
// referencing a world/instance and an optional message slot.
type InviteRequest struct {
	WorldID     string `json:"worldId"`
	InstanceID  string `json:"instanceId"`
	MessageSlot *int   `json:"messageSlot,omitempty"`
}
