package rules_test

import (
	"sync"
	"testing"

	"github.com/modryx/warden/internal/rules"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func TestEvaluateKeywordConflictResolution(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	decision := engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_1", Bio: "friend spam"},
		&rules.RuleConfig{
			RequireKeywords: []string{"friend"},
			ExcludeKeywords: []string{"spam"},
		},
	)

	assert.Equal(t, rules.ActionReject, decision.Action)
	assert.Contains(t, decision.Reason, "spam")
	assert.Contains(t, decision.Reason, "friend")
	assert.Contains(t, decision.Reason, "deny overrides accept")
	assert.Equal(t, "spam", decision.MatchedKeyword)
}

func TestEvaluateDenyKeywordOverridesEarlierChecks(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	// Trust check would reject first, but the deny keyword supplies the
	// decision because the keyword pass always runs
	decision := engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_1", Bio: "crypto promoter", Tags: []string{"system_trust_basic"}},
		&rules.RuleConfig{
			MinTrustRank:    3,
			ExcludeKeywords: []string{"crypto"},
		},
	)

	assert.Equal(t, rules.ActionReject, decision.Action)
	assert.Equal(t, "crypto", decision.MatchedKeyword)
}

func TestEvaluateWholeWordMatching(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	tests := []struct {
		name string
		bio  string
		want rules.Action
	}{
		{
			name: "keyword inside longer word does not match",
			bio:  "he was here",
			want: rules.ActionNoAction,
		},
		{
			name: "whole word matches",
			bio:  "I saw her",
			want: rules.ActionReject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate(
				&rules.JoinRequest{UserID: "usr_1", Bio: tt.bio},
				&rules.RuleConfig{ExcludeKeywords: []string{"her"}},
			)
			assert.Equal(t, tt.want, decision.Action)
		})
	}
}

func TestEvaluateAccountAgeFailsOpen(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()
	cfg := &rules.RuleConfig{MinAccountAgeDays: 30}

	// Unknown account age never causes a reject
	decision := engine.Evaluate(&rules.JoinRequest{UserID: "usr_1"}, cfg)
	assert.Equal(t, rules.ActionNoAction, decision.Action)

	// Known age below the minimum does
	decision = engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_2", AccountAgeDays: intPtr(10)}, cfg,
	)
	assert.Equal(t, rules.ActionReject, decision.Action)
	assert.Contains(t, decision.Reason, "10")
	assert.Contains(t, decision.Reason, "30")

	// Known age above the minimum passes through
	decision = engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_3", AccountAgeDays: intPtr(90)}, cfg,
	)
	assert.Equal(t, rules.ActionNoAction, decision.Action)
}

func TestEvaluateTrustRank(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	decision := engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_1", Tags: []string{"system_trust_basic"}},
		&rules.RuleConfig{MinTrustRank: 3},
	)

	assert.Equal(t, rules.ActionReject, decision.Action)
	assert.Contains(t, decision.Reason, "New User")
	assert.Contains(t, decision.Reason, "minimum level 3")
}

func TestEvaluateAgeVerification(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()
	cfg := &rules.RuleConfig{AgeVerifiedOnly: true}

	decision := engine.Evaluate(&rules.JoinRequest{UserID: "usr_1"}, cfg)
	assert.Equal(t, rules.ActionReject, decision.Action)
	assert.Contains(t, decision.Reason, "age verification")

	decision = engine.Evaluate(&rules.JoinRequest{UserID: "usr_2", AgeVerified: true}, cfg)
	assert.Equal(t, rules.ActionNoAction, decision.Action)
}

func TestEvaluateAcceptKeyword(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	decision := engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_1", StatusDescription: "looking for a friend group"},
		&rules.RuleConfig{RequireKeywords: []string{"friend"}},
	)

	assert.Equal(t, rules.ActionAccept, decision.Action)
	assert.Equal(t, "friend", decision.MatchedKeyword)
}

func TestEvaluateConcurrent(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()
	cfg := &rules.RuleConfig{
		RequireKeywords: []string{"friend"},
		ExcludeKeywords: []string{"spam"},
	}

	// One shared engine serves every notification goroutine; results must
	// stay deterministic per input under contention
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 200; i++ {
				var req *rules.JoinRequest
				var want rules.Action

				if i%2 == 0 {
					req = &rules.JoinRequest{UserID: "usr_a", Bio: "Ünïcode spam bio text"}
					want = rules.ActionReject
				} else {
					req = &rules.JoinRequest{UserID: "usr_b", StatusDescription: "friend group"}
					want = rules.ActionAccept
				}

				if got := engine.Evaluate(req, cfg).Action; got != want {
					t.Errorf("Evaluate() = %s, want %s", got, want)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestEvaluateEmptyConfigIsNoAction(t *testing.T) {
	t.Parallel()

	engine := rules.NewEngine()

	// Missing config fields restrict nothing
	decision := engine.Evaluate(
		&rules.JoinRequest{UserID: "usr_1", Bio: "anything at all"},
		&rules.RuleConfig{},
	)

	assert.Equal(t, rules.ActionNoAction, decision.Action)
	assert.Contains(t, decision.Reason, "manual review")
}
