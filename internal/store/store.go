package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/modryx/warden/internal/rules"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	ruleConfigKeyPrefix = "rule_config:"
	watchlistKeyPrefix  = "watchlist:"
	auditKeyPrefix      = "audit:"
	processedKeyPrefix  = "processed:"

	// auditListMax bounds the per-group audit trail length.
	auditListMax = 1000

	// processedTTL keeps processed-request markers long enough to cover
	// feed redelivery without growing unbounded.
	processedTTL = 7 * 24 * time.Hour
)

// WatchlistEntry is one operator-curated watchlist record.
type WatchlistEntry struct {
	UserID  string    `json:"userId"`
	Tags    []string  `json:"tags"`
	Note    string    `json:"note"`
	AddedAt time.Time `json:"addedAt"`
}

// Store is the rule-config, watchlist, and audit store backed by Redis.
// It satisfies the config-source, audit-sink, and watchlist-checker
// contracts consumed by the core services.
type Store struct {
	config rueidis.Client
	audit  rueidis.Client
	logger *zap.Logger
}

// New creates a store over the manager's config and audit databases.
func New(manager *Manager, logger *zap.Logger) (*Store, error) {
	configClient, err := manager.GetClient(ConfigDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get config store client: %w", err)
	}

	auditClient, err := manager.GetClient(AuditDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit store client: %w", err)
	}

	return NewWithClients(configClient, auditClient, logger), nil
}

// NewWithClients creates a store over explicit Redis clients.
func NewWithClients(configClient, auditClient rueidis.Client, logger *zap.Logger) *Store {
	return &Store{
		config: configClient,
		audit:  auditClient,
		logger: logger.Named("store"),
	}
}

// RuleConfig loads the automod criteria for a group. A missing config
// returns an empty snapshot, which restricts nothing.
func (s *Store) RuleConfig(ctx context.Context, groupID string) (*rules.RuleConfig, error) {
	key := ruleConfigKeyPrefix + groupID

	data, err := s.config.Do(ctx, s.config.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &rules.RuleConfig{}, nil
		}

		return nil, fmt.Errorf("failed to load rule config for group %s: %w", groupID, err)
	}

	var cfg rules.RuleConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		// A corrupt config restricts nothing rather than blocking moderation
		s.logger.Warn("Corrupt rule config, treating as unrestricted",
			zap.String("groupID", groupID),
			zap.Error(err))

		return &rules.RuleConfig{}, nil
	}

	return &cfg, nil
}

// SetRuleConfig stores the automod criteria for a group.
func (s *Store) SetRuleConfig(ctx context.Context, groupID string, cfg *rules.RuleConfig) error {
	data, err := sonic.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal rule config: %w", err)
	}

	key := ruleConfigKeyPrefix + groupID
	if err := s.config.Do(ctx, s.config.B().Set().Key(key).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to store rule config for group %s: %w", groupID, err)
	}

	return nil
}

// AddWatchlistEntry adds or replaces a watchlist record.
func (s *Store) AddWatchlistEntry(ctx context.Context, entry *WatchlistEntry) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist entry: %w", err)
	}

	key := watchlistKeyPrefix + entry.UserID
	if err := s.config.Do(ctx, s.config.B().Set().Key(key).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to store watchlist entry for user %s: %w", entry.UserID, err)
	}

	return nil
}

// RemoveWatchlistEntry deletes a watchlist record.
func (s *Store) RemoveWatchlistEntry(ctx context.Context, userID string) error {
	key := watchlistKeyPrefix + userID
	if err := s.config.Do(ctx, s.config.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to remove watchlist entry for user %s: %w", userID, err)
	}

	return nil
}

// Watchlist returns every watchlist entry, for the management surface.
func (s *Store) Watchlist(ctx context.Context) ([]*WatchlistEntry, error) {
	var (
		entries []*WatchlistEntry
		cursor  uint64
	)

	for {
		scan, err := s.config.Do(ctx, s.config.B().Scan().Cursor(cursor).Match(watchlistKeyPrefix+"*").Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist: %w", err)
		}

		for _, key := range scan.Elements {
			data, err := s.config.Do(ctx, s.config.B().Get().Key(key).Build()).AsBytes()
			if err != nil {
				if rueidis.IsRedisNil(err) {
					continue
				}

				return nil, fmt.Errorf("failed to load watchlist entry %s: %w", key, err)
			}

			var entry WatchlistEntry
			if err := sonic.Unmarshal(data, &entry); err != nil {
				s.logger.Warn("Skipping corrupt watchlist entry",
					zap.String("key", key),
					zap.Error(err))

				continue
			}

			entries = append(entries, &entry)
		}

		cursor = scan.Cursor
		if cursor == 0 {
			break
		}
	}

	return entries, nil
}

// IsWatched reports whether a user is on the watchlist, with the entry's
// tags on a match.
func (s *Store) IsWatched(ctx context.Context, userID string) ([]string, bool, error) {
	key := watchlistKeyPrefix + userID

	data, err := s.config.Do(ctx, s.config.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to check watchlist for user %s: %w", userID, err)
	}

	var entry WatchlistEntry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("corrupt watchlist entry for user %s: %w", userID, err)
	}

	return entry.Tags, true, nil
}

// RecordDecision appends one audit record to the group's trail, trimming
// it to the configured maximum.
func (s *Store) RecordDecision(ctx context.Context, record *rules.AuditRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	key := auditKeyPrefix + record.GroupID

	if err := s.audit.Do(ctx, s.audit.B().Lpush().Key(key).Element(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to append audit record for group %s: %w", record.GroupID, err)
	}

	if err := s.audit.Do(ctx, s.audit.B().Ltrim().Key(key).Start(0).Stop(auditListMax-1).Build()).Error(); err != nil {
		s.logger.Warn("Failed to trim audit trail",
			zap.String("groupID", record.GroupID),
			zap.Error(err))
	}

	return nil
}

// Decisions returns the most recent audit records for a group.
func (s *Store) Decisions(ctx context.Context, groupID string, limit int64) ([]*rules.AuditRecord, error) {
	key := auditKeyPrefix + groupID

	entries, err := s.audit.Do(ctx, s.audit.B().Lrange().Key(key).Start(0).Stop(limit-1).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail for group %s: %w", groupID, err)
	}

	records := make([]*rules.AuditRecord, 0, len(entries))

	for _, entry := range entries {
		var record rules.AuditRecord
		if err := sonic.Unmarshal([]byte(entry), &record); err != nil {
			s.logger.Warn("Skipping corrupt audit record",
				zap.String("groupID", groupID),
				zap.Error(err))

			continue
		}

		records = append(records, &record)
	}

	return records, nil
}

// MarkProcessed records that a join request was fully handled.
func (s *Store) MarkProcessed(ctx context.Context, groupID, userID string) error {
	key := processedKeyPrefix + groupID + ":" + userID

	err := s.audit.Do(ctx, s.audit.B().Set().Key(key).Value("1").Ex(processedTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to mark request processed for user %s: %w", userID, err)
	}

	return nil
}

// WasProcessed reports whether a join request was already handled.
func (s *Store) WasProcessed(ctx context.Context, groupID, userID string) (bool, error) {
	key := processedKeyPrefix + groupID + ":" + userID

	count, err := s.audit.Do(ctx, s.audit.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check processed marker for user %s: %w", userID, err)
	}

	return count > 0, nil
}
