package rules

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modryx/warden/internal/alert"
	"github.com/modryx/warden/internal/event"
	"github.com/modryx/warden/internal/platform"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentProfileFetches bounds parallel profile lookups so a large
// request backlog cannot flood the platform API.
const maxConcurrentProfileFetches = 4

// RequestStub is the minimal join-request information carried by a feed
// notification, before the full profile is fetched.
type RequestStub struct {
	UserID      string
	DisplayName string
	Message     string
}

// ModerationAPI is the slice of the platform API the processor needs.
type ModerationAPI interface {
	GetUserProfile(ctx context.Context, userID string) (*platform.UserProfile, error)
	HandleJoinRequest(ctx context.Context, groupID, userID string, action platform.JoinRequestAction) error
}

// ConfigSource supplies per-group rule configuration snapshots.
type ConfigSource interface {
	RuleConfig(ctx context.Context, groupID string) (*RuleConfig, error)
}

// AuditSink persists decision outcomes and processed-request markers.
type AuditSink interface {
	RecordDecision(ctx context.Context, record *AuditRecord) error
	MarkProcessed(ctx context.Context, groupID, userID string) error
	WasProcessed(ctx context.Context, groupID, userID string) (bool, error)
}

// Notifier delivers alert-worthy rule outcomes.
type Notifier interface {
	Dispatch(ctx context.Context, req *alert.Request) bool
}

// Processor applies rule decisions to pending join requests. The engine
// itself is pure; all side effects (API actions, audit records,
// notifications) live here.
type Processor struct {
	engine   *Engine
	api      ModerationAPI
	configs  ConfigSource
	audit    AuditSink
	notifier Notifier
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewProcessor creates a join-request processor.
func NewProcessor(
	api ModerationAPI, configs ConfigSource, audit AuditSink, notifier Notifier, logger *zap.Logger,
) *Processor {
	return &Processor{
		engine:   NewEngine(),
		api:      api,
		configs:  configs,
		audit:    audit,
		notifier: notifier,
		sem:      semaphore.NewWeighted(maxConcurrentProfileFetches),
		logger:   logger.Named("rules"),
	}
}

// HandleNotification is registered as a feed subscriber. Group join
// request notifications are handed to the processor off the receive loop
// so evaluation never blocks event delivery.
func (p *Processor) HandleNotification(evt event.Event) {
	n := evt.Notification
	if n == nil || n.Type != "group.joinRequest" || n.GroupID == "" {
		return
	}

	stub := &RequestStub{
		UserID:      n.SenderUserID,
		DisplayName: n.SenderUsername,
		Message:     n.Message,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		p.ProcessRequests(ctx, n.GroupID, []*RequestStub{stub})
	}()
}

// ProcessRequests evaluates a batch of pending join requests for one
// group and applies the resulting decisions. It returns the IDs of users
// whose requests were fully handled; a failed moderation API call leaves
// the user out of the result so the request falls back to manual review.
func (p *Processor) ProcessRequests(ctx context.Context, groupID string, stubs []*RequestStub) []string {
	cfg, err := p.configs.RuleConfig(ctx, groupID)
	if err != nil {
		// Missing configuration means no restriction is configured
		p.logger.Warn("Failed to load rule config, treating as unrestricted",
			zap.String("groupID", groupID),
			zap.Error(err))

		cfg = &RuleConfig{}
	}

	requests := p.buildRequests(ctx, stubs)

	processed := make([]string, 0, len(requests))

	for _, req := range requests {
		done, err := p.audit.WasProcessed(ctx, groupID, req.UserID)
		if err != nil {
			p.logger.Warn("Failed to check processed marker",
				zap.String("userID", req.UserID),
				zap.Error(err))
		} else if done {
			continue
		}

		decision := p.engine.Evaluate(req, cfg)
		if decision.Action == ActionNoAction {
			continue
		}

		if ok := p.applyDecision(ctx, groupID, req, decision); ok {
			processed = append(processed, req.UserID)
		}
	}

	return processed
}

// buildRequests merges each stub with its fetched profile. Profile
// fetches run concurrently under the semaphore; a failed fetch degrades
// to the stub alone so evaluation can still run on what is known.
func (p *Processor) buildRequests(ctx context.Context, stubs []*RequestStub) []*JoinRequest {
	var (
		requests = make([]*JoinRequest, len(stubs))
		wg       sync.WaitGroup
	)

	for i, stub := range stubs {
		requests[i] = &JoinRequest{
			UserID:         stub.UserID,
			DisplayName:    stub.DisplayName,
			RequestMessage: stub.Message,
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)

		go func(req *JoinRequest) {
			defer wg.Done()
			defer p.sem.Release(1)

			profile, err := p.api.GetUserProfile(ctx, req.UserID)
			if err != nil {
				p.logger.Warn("Failed to fetch profile for join request",
					zap.String("userID", req.UserID),
					zap.Error(err))

				return
			}

			req.Bio = profile.Bio
			req.StatusDescription = profile.StatusDescription
			req.Tags = profile.Tags
			req.AgeVerified = profile.AgeVerified()

			if days, ok := profile.AccountAgeDays(time.Now()); ok {
				req.AccountAgeDays = &days
			}
		}(requests[i])
	}

	wg.Wait()

	return requests
}

// applyDecision performs the external moderation action and, on success,
// records the audit trail and triggers a notification.
func (p *Processor) applyDecision(ctx context.Context, groupID string, req *JoinRequest, decision RuleDecision) bool {
	action := platform.ActionAccept
	severity := alert.SeverityInfo

	if decision.Action == ActionReject {
		action = platform.ActionReject
		severity = alert.SeverityWarning
	}

	if err := p.api.HandleJoinRequest(ctx, groupID, req.UserID, action); err != nil {
		p.logger.Error("Failed to apply join request decision",
			zap.String("groupID", groupID),
			zap.String("userID", req.UserID),
			zap.String("action", string(decision.Action)),
			zap.Error(err))

		return false
	}

	record := &AuditRecord{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		UserID:    req.UserID,
		Username:  req.DisplayName,
		Message:   req.RequestMessage,
		Action:    decision.Action,
		Reason:    decision.Reason,
		DecidedAt: time.Now(),
	}
	if err := p.audit.RecordDecision(ctx, record); err != nil {
		p.logger.Warn("Failed to persist audit record",
			zap.String("userID", req.UserID),
			zap.Error(err))
	}

	if err := p.audit.MarkProcessed(ctx, groupID, req.UserID); err != nil {
		p.logger.Warn("Failed to mark request processed",
			zap.String("userID", req.UserID),
			zap.Error(err))
	}

	p.notifier.Dispatch(ctx, &alert.Request{
		Category:        alert.CategoryJoinRequest,
		Severity:        severity,
		SubjectUsername: req.DisplayName,
		SubjectUserID:   req.UserID,
		Tags:            []string{string(decision.Action)},
	})

	p.logger.Info("Applied join request decision",
		zap.String("groupID", groupID),
		zap.String("userID", req.UserID),
		zap.String("action", string(decision.Action)),
		zap.String("reason", decision.Reason))

	return true
}
