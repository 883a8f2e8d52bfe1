package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/modryx/warden/internal/rules"
	"github.com/modryx/warden/internal/store"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTest(t *testing.T) *store.Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return store.NewWithClients(client, client, zaptest.NewLogger(t))
}

func TestRuleConfigRoundTrip(t *testing.T) {
	t.Parallel()

	s := setupTest(t)
	ctx := context.Background()

	cfg := &rules.RuleConfig{
		RequireKeywords:   []string{"friend"},
		ExcludeKeywords:   []string{"spam"},
		AgeVerifiedOnly:   true,
		MinTrustRank:      3,
		MinAccountAgeDays: 30,
	}

	require.NoError(t, s.SetRuleConfig(ctx, "grp_1", cfg))

	loaded, err := s.RuleConfig(ctx, "grp_1")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRuleConfigMissingIsUnrestricted(t *testing.T) {
	t.Parallel()

	s := setupTest(t)

	cfg, err := s.RuleConfig(context.Background(), "grp_unknown")
	require.NoError(t, err)
	assert.Equal(t, &rules.RuleConfig{}, cfg)
}

func TestWatchlist(t *testing.T) {
	t.Parallel()

	s := setupTest(t)
	ctx := context.Background()

	entry := &store.WatchlistEntry{
		UserID:  "usr_1",
		Tags:    []string{"scammer", "repeat"},
		Note:    "seen before",
		AddedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AddWatchlistEntry(ctx, entry))

	tags, watched, err := s.IsWatched(ctx, "usr_1")
	require.NoError(t, err)
	assert.True(t, watched)
	assert.Equal(t, []string{"scammer", "repeat"}, tags)

	_, watched, err = s.IsWatched(ctx, "usr_other")
	require.NoError(t, err)
	assert.False(t, watched)

	entries, err := s.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "usr_1", entries[0].UserID)

	require.NoError(t, s.RemoveWatchlistEntry(ctx, "usr_1"))

	_, watched, err = s.IsWatched(ctx, "usr_1")
	require.NoError(t, err)
	assert.False(t, watched)
}

func TestAuditTrail(t *testing.T) {
	t.Parallel()

	s := setupTest(t)
	ctx := context.Background()

	first := &rules.AuditRecord{
		ID:        "rec_1",
		GroupID:   "grp_1",
		UserID:    "usr_1",
		Action:    rules.ActionReject,
		Reason:    "deny keyword \"spam\" matched",
		DecidedAt: time.Now().UTC().Truncate(time.Second),
	}
	second := &rules.AuditRecord{
		ID:        "rec_2",
		GroupID:   "grp_1",
		UserID:    "usr_2",
		Action:    rules.ActionAccept,
		Reason:    "accept keyword \"friend\" matched",
		DecidedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, s.RecordDecision(ctx, first))
	require.NoError(t, s.RecordDecision(ctx, second))

	records, err := s.Decisions(ctx, "grp_1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Most recent first
	assert.Equal(t, "rec_2", records[0].ID)
	assert.Equal(t, "rec_1", records[1].ID)
}

func TestProcessedMarkers(t *testing.T) {
	t.Parallel()

	s := setupTest(t)
	ctx := context.Background()

	done, err := s.WasProcessed(ctx, "grp_1", "usr_1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkProcessed(ctx, "grp_1", "usr_1"))

	done, err = s.WasProcessed(ctx, "grp_1", "usr_1")
	require.NoError(t, err)
	assert.True(t, done)

	// Markers are scoped per group
	done, err = s.WasProcessed(ctx, "grp_2", "usr_1")
	require.NoError(t, err)
	assert.False(t, done)
}
