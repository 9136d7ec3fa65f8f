// Package conversation runs agent chat sessions: session identity, history
// loading, turn orchestration and persistence of every exchange.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentchat/internal/app/historycache"
	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/agentclient"
	"agentchat/internal/observability"
	"agentchat/internal/shared/logging"
	id "agentchat/internal/shared/utils/id"

	"golang.org/x/sync/errgroup"
)

// Service holds the collaborators shared by every conversation.
type Service struct {
	messages chat.MessageStore
	agents   chat.AgentStore
	users    chat.UserStore
	caller   agentclient.Caller
	cache    historycache.Store
	ids      *id.Generator
	now      func() time.Time
	logger   logging.Logger
	metrics  *observability.MetricsCollector
	tracer   *observability.TracerProvider
}

// Option customizes a Service.
type Option func(*Service)

// WithCache replaces the default LRU history cache.
func WithCache(cache historycache.Store) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the session and message id generator.
func WithIDGenerator(ids *id.Generator) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrNop(logger)
	}
}

// WithMetrics records turn outcomes and cache lookups.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithTracer wraps turns in spans.
func WithTracer(tracer *observability.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService wires a conversation service.
func NewService(messages chat.MessageStore, agents chat.AgentStore, users chat.UserStore, caller agentclient.Caller, opts ...Option) *Service {
	s := &Service{
		messages: messages,
		agents:   agents,
		users:    users,
		caller:   caller,
		ids:      id.Default(),
		now:      time.Now,
		logger:   logging.NewComponentLogger("Conversation"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.cache == nil {
		s.cache = historycache.NewLRU(historycache.Config{Now: s.now})
	}
	return s
}

// Open starts a conversation between a user and an agent with a fresh live
// session. An empty userID opens an anonymous, read-only view of a public
// agent. Private agents require the admin role.
func (s *Service) Open(ctx context.Context, userID, agentID string) (*Conversation, error) {
	userID = strings.TrimSpace(userID)
	if err := chat.ValidateID(agentID); err != nil {
		return nil, err
	}

	var agent chat.Agent
	user := chat.UserData{UID: userID}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		loaded, err := s.agents.Get(groupCtx, agentID)
		if err != nil {
			return fmt.Errorf("load agent: %w", err)
		}
		agent = loaded
		return nil
	})
	if userID != "" {
		group.Go(func() error {
			loaded, err := s.users.Get(groupCtx, userID)
			if errors.Is(err, chat.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}
			user = loaded
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if !agent.VisibleTo(user) {
		s.metrics.RecordTurn(ctx, agentID, observability.OutcomeRejected)
		return nil, fmt.Errorf("agent %s: %w", agentID, chat.ErrForbidden)
	}

	conv := &Conversation{
		svc:       s,
		agent:     agent,
		user:      user,
		sessionID: s.ids.SessionID(),
	}
	s.logger.Debug("Opened conversation user=%q agent=%s session=%s", userID, agentID, conv.sessionID)
	return conv, nil
}

// Agents lists the agents a user may open.
func (s *Service) Agents(ctx context.Context, userID string) ([]chat.Agent, error) {
	includePrivate := false
	if userID = strings.TrimSpace(userID); userID != "" {
		user, err := s.users.Get(ctx, userID)
		if err != nil && !errors.Is(err, chat.ErrNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		includePrivate = user.IsAdmin()
	}
	agents, err := s.agents.List(ctx, includePrivate)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}
