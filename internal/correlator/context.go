package correlator

import (
	"time"
)

// State is where the operator currently is, relative to the groups they
// moderate. The machine is terminal-free and cycles indefinitely.
type State string

const (
	// StateOffline means no local activity signal is present.
	StateOffline State = "offline"
	// StateInUntracked means the operator is in an instance that matches
	// no tracked group.
	StateInUntracked State = "in_untracked"
	// StateInGroupInstance means the operator's location matches a
	// tracked group instance.
	StateInGroupInstance State = "in_group_instance"
)

// InstanceDetails describes the operator's current instance. Location is
// the composite worldId:instanceId join key matched against cached group
// instance listings.
type InstanceDetails struct {
	WorldID         string
	InstanceID      string
	GroupID         string
	Location        string
	MemberCount     int
	IsGroupInstance bool
	GroupName       string
	Timestamp       time.Time
}

// GroupRef identifies the tracked group the current instance belongs to.
type GroupRef struct {
	ID   string
	Name string
}

// FeatureFlag names a capability gated on moderation context.
type FeatureFlag string

const (
	// Always-available administrative features.
	FeatureRuleConfig      FeatureFlag = "rule_config"
	FeatureAuditHistory    FeatureFlag = "audit_history"
	FeatureWatchlistManage FeatureFlag = "watchlist_manage"

	// Features requiring an active group instance.
	FeatureLiveModeration FeatureFlag = "live_moderation"
	FeatureHeadsetAlerts  FeatureFlag = "headset_alerts"
	FeaturePlayerMonitor  FeatureFlag = "player_monitor"
	FeatureQuickActions   FeatureFlag = "quick_actions"
)

// adminFeatures are available regardless of state.
var adminFeatures = map[FeatureFlag]struct{}{
	FeatureRuleConfig:      {},
	FeatureAuditHistory:    {},
	FeatureWatchlistManage: {},
}

// instanceFeatures require StateInGroupInstance.
var instanceFeatures = map[FeatureFlag]struct{}{
	FeatureLiveModeration: {},
	FeatureHeadsetAlerts:  {},
	FeaturePlayerMonitor:  {},
	FeatureQuickActions:   {},
}

// ModerationContext is the operator's current moderation context. It is
// replaced wholesale on every transition, never mutated in place, so
// readers always see a fully-formed snapshot without locking.
type ModerationContext struct {
	State           State
	CurrentInstance *InstanceDetails
	MatchingGroup   *GroupRef
	LastUpdated     time.Time
}

// IsFeatureAvailable reports whether a feature can be used in the
// current state. It is a pure function of the state and the two fixed
// feature sets.
func (c *ModerationContext) IsFeatureAvailable(name FeatureFlag) bool {
	if _, ok := adminFeatures[name]; ok {
		return true
	}

	if _, ok := instanceFeatures[name]; ok {
		return c.State == StateInGroupInstance
	}

	return false
}

// offlineContext builds the Offline snapshot.
func offlineContext() *ModerationContext {
	return &ModerationContext{
		State:       StateOffline,
		LastUpdated: time.Now(),
	}
}
