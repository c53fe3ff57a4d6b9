// Package service is the agent-facing façade over a shared tree. Every call
// passes the guard pipeline (rate limit, idempotent replay, role check,
// target resolution, version check), runs under one service-wide lock and
// emits exactly one audit entry.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/guard"
	"github.com/alexanderramin/arbor/internal/query"
	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/alexanderramin/arbor/internal/view"
	"github.com/google/uuid"
)

// Config holds the tunables of a Service.
type Config struct {
	RateCapacity    int
	RefillPeriod    time.Duration
	IdempotencyTTL  time.Duration
	DefaultExpanded bool
	DefaultPageSize int
	MaxPageSize     int
}

func DefaultConfig() Config {
	return Config{
		RateCapacity:    100,
		RefillPeriod:    time.Minute,
		IdempotencyTTL:  10 * time.Minute,
		DefaultExpanded: true,
		DefaultPageSize: 50,
		MaxPageSize:     500,
	}
}

// Option configures a Service at construction.
type Option func(*Service)

func WithClock(now guard.Clock) Option {
	return func(s *Service) { s.now = now }
}

func WithAuditSink(sink AuditSink) Option {
	return func(s *Service) { s.audit = sink }
}

func WithObserver(obs CallObserver) Option {
	return func(s *Service) { s.observer = obs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIDGenerator replaces the UUID generator for nodes, bookmarks and
// snapshots.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// Service owns one tree, its view and the agent-facing side state.
type Service struct {
	mu        sync.RWMutex
	registry  *tree.Registry
	tree      *tree.Tree
	view      *view.View
	tags      map[string][]string
	bookmarks []contract.Bookmark
	snapshots []*snapshot
	unwatch   func()

	limiter  *guard.RateLimiter
	idem     *guard.IdempotencyStore
	versions *guard.VersionProvider

	cfg      Config
	audit    AuditSink
	observer CallObserver
	logger   *slog.Logger
	now      guard.Clock
	newID    func() string
}

// New creates a service over a fresh tree whose root has rootType.
func New(reg *tree.Registry, rootType string, rootProps map[string]any, cfg Config, opts ...Option) (*Service, error) {
	s := newService(reg, cfg, opts)
	t, err := tree.New(reg, rootType, rootProps, tree.WithIDGenerator(s.newID))
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	if err := s.attach(t, cfg.DefaultExpanded); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromTree creates a service over an existing tree. The service takes
// ownership of t.
func NewFromTree(t *tree.Tree, cfg Config, opts ...Option) (*Service, error) {
	s := newService(t.Registry(), cfg, opts)
	if err := s.attach(t, cfg.DefaultExpanded); err != nil {
		return nil, err
	}
	return s, nil
}

func newService(reg *tree.Registry, cfg Config, opts []Option) *Service {
	s := &Service{
		registry: reg,
		tags:     make(map[string][]string),
		versions: guard.NewVersionProvider(),
		cfg:      cfg,
		audit:    noopAuditSink{},
		observer: NoopCallObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = guard.NewRateLimiter(cfg.RateCapacity, cfg.RefillPeriod, s.now)
	s.idem = guard.NewIdempotencyStore(cfg.IdempotencyTTL, s.now)
	return s
}

// attach binds a tree and a fresh view to the service, replacing any
// previous ones.
func (s *Service) attach(t *tree.Tree, defaultExpanded bool) error {
	v, err := view.New(t, t.RootID(), view.Options{DefaultExpanded: defaultExpanded})
	if err != nil {
		return fmt.Errorf("attach view: %w", err)
	}
	if s.view != nil {
		s.view.Close()
	}
	if s.unwatch != nil {
		s.unwatch()
	}
	s.tree = t
	s.view = v
	s.unwatch = t.Watch(s.pruneTags)
	return nil
}

// pruneTags drops the tag sets of removed nodes.
func (s *Service) pruneTags(c tree.Change) {
	for _, id := range c.Removed {
		delete(s.tags, id)
	}
}

// Close detaches the view and tag watcher from the tree.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Close()
	s.unwatch()
}

// Registry returns the payload type registry.
func (s *Service) Registry() *tree.Registry { return s.registry }

// RootID returns the tree root's NodeID.
func (s *Service) RootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.RootID()
}

// Inspect runs fn with read access to the tree and view. It bypasses the
// guard pipeline and is meant for the embedding host.
func (s *Service) Inspect(fn func(t *tree.Tree, v *view.View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.tree, s.view)
}

func (s *Service) nodeInfo(n *tree.Node) contract.NodeInfo {
	return contract.NodeInfo{
		NodeID:      n.ID(),
		PayloadType: n.PayloadType(),
		ParentID:    n.ParentID(),
		Depth:       n.Depth(),
		ChildCount:  n.ChildCount(),
		Expanded:    s.view.IsExpanded(n.ID()),
		Properties:  s.view.FilterProperties(n.Properties()),
		Tags:        slices.Clone(s.tags[n.ID()]),
	}
}

func (s *Service) nodeInfos(nodes []*tree.Node) []contract.NodeInfo {
	out := make([]contract.NodeInfo, len(nodes))
	for i, n := range nodes {
		out[i] = s.nodeInfo(n)
	}
	return out
}

func (s *Service) pageSize(requested int) int {
	return query.PageSize(requested, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
}

// orRoot substitutes the tree root for an empty node ID.
func (s *Service) orRoot(id string) string {
	if id == "" {
		return s.tree.RootID()
	}
	return id
}
