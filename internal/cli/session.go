package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/db"
	"github.com/alexanderramin/arbor/internal/repository"
	"github.com/alexanderramin/arbor/internal/service"
	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/alexanderramin/arbor/internal/view"
	"github.com/spf13/cobra"
)

// currentBlob names the persisted state of the working tree.
const currentBlob = "current"

var errNoTree = errors.New("no tree yet; run 'arbor init'")

// session is one command's view of the persisted tree. Audit entries are
// buffered and written in the same transaction as the saved state.
type session struct {
	ctx   context.Context
	svc   *service.Service
	agent contract.AgentContext
	audit *service.MemoryAuditSink
	dirty bool
}

func (a *App) serviceOptions(audit *service.MemoryAuditSink) []service.Option {
	observers := []service.CallObserver{service.NewSlogCallObserver(a.logger())}
	if a.Metrics != nil && a.metrics == nil {
		m, err := service.NewMetricsObserver(a.Metrics)
		if err != nil {
			a.logger().Warn("metrics disabled", "error", err)
		}
		a.metrics = m
	}
	if a.metrics != nil {
		observers = append(observers, a.metrics)
	}
	opts := []service.Option{
		service.WithAuditSink(audit),
		service.WithLogger(a.logger()),
		service.WithObserver(service.MultiCallObserver(observers...)),
		service.WithClock(a.now),
	}
	if a.NewID != nil {
		opts = append(opts, service.WithIDGenerator(a.NewID))
	}
	return opts
}

// load restores the persisted tree into a fresh service.
func (a *App) load(ctx context.Context) (*session, error) {
	blob, err := repository.NewSQLiteBlobRepo(a.DB).Get(ctx, currentBlob)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNoTree
	}
	if err != nil {
		return nil, fmt.Errorf("loading tree: %w", err)
	}
	audit := &service.MemoryAuditSink{}
	svc, err := service.Load(a.registry(), blob.Data, a.Config.Service(), a.serviceOptions(audit)...)
	if err != nil {
		return nil, fmt.Errorf("restoring tree: %w", err)
	}
	return &session{ctx: ctx, svc: svc, agent: a.agent(), audit: audit}, nil
}

// create starts a new tree that replaces any persisted one on commit.
func (a *App) create(ctx context.Context, rootType string, props map[string]any) (*session, error) {
	audit := &service.MemoryAuditSink{}
	svc, err := service.New(a.registry(), rootType, props, a.Config.Service(), a.serviceOptions(audit)...)
	if err != nil {
		return nil, err
	}
	return &session{ctx: ctx, svc: svc, agent: a.agent(), audit: audit, dirty: true}, nil
}

// commit writes the buffered audit entries and, when the command succeeded
// and changed the tree, the new state. Both land in one transaction.
func (a *App) commit(s *session, runErr error) error {
	defer s.svc.Close()

	var state []byte
	if runErr == nil && s.dirty {
		data, err := s.svc.MarshalState()
		if err != nil {
			return fmt.Errorf("saving tree: %w", err)
		}
		state = data
	}
	entries := s.audit.Entries()
	if state == nil && len(entries) == 0 {
		return runErr
	}

	uow := db.NewSQLiteUnitOfWork(a.DB)
	err := uow.WithinTx(s.ctx, func(ctx context.Context, tx db.DBTX) error {
		if state != nil {
			if _, err := repository.NewSQLiteBlobRepo(tx).Put(ctx, currentBlob, state); err != nil {
				return err
			}
		}
		audits := repository.NewSQLiteAuditRepo(tx)
		for _, e := range entries {
			if err := audits.RecordAudit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if runErr != nil {
			a.logger().Warn("audit write failed", "error", err)
			return runErr
		}
		return fmt.Errorf("saving tree: %w", err)
	}
	return runErr
}

// withSession loads the tree, runs fn and commits.
func (a *App) withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := a.load(cmd.Context())
	if err != nil {
		return err
	}
	return a.commit(s, fn(s))
}

// result unwraps a read envelope.
func result[T any](res contract.Result[T]) (T, error) {
	return res.Data, res.Err()
}

// mutated unwraps a mutation envelope and marks the session for saving.
func mutated[T any](s *session, res contract.Result[T]) (T, error) {
	if res.Success {
		s.dirty = true
	}
	return res.Data, res.Err()
}

// resolve maps a node reference to a NodeID. "root" and "." name the tree
// root; otherwise an exact ID wins, then a unique ID prefix. Unknown
// references pass through so the service reports not_found.
func (s *session) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	var (
		resolved string
		matches  []string
	)
	s.svc.Inspect(func(t *tree.Tree, _ *view.View) {
		if ref == "root" || ref == "." {
			resolved = t.RootID()
			return
		}
		if t.Has(ref) {
			resolved = ref
			return
		}
		_ = t.Walk(t.RootID(), func(n *tree.Node) bool {
			if strings.HasPrefix(n.ID(), ref) {
				matches = append(matches, n.ID())
			}
			return true
		})
	})
	switch {
	case resolved != "":
		return resolved, nil
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		return "", fmt.Errorf("node reference %q is ambiguous (%d matches)", ref, len(matches))
	}
	return ref, nil
}

func (s *session) resolveAll(refs []string) ([]string, error) {
	out := make([]string, len(refs))
	for i, ref := range refs {
		id, err := s.resolve(ref)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// parseAssignments turns "Name=value" flags into a property map. Values stay
// strings; the tree coerces them to the property kind.
func parseAssignments(pairs []string) (map[string]any, error) {
	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (want Name=value)", p)
		}
		props[name] = value
	}
	return props, nil
}
