package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
)

// call describes one guarded invocation. Targets are resolved before
// execution; an empty target means the tree root and is not checked. The
// version scope defaults to the tree root.
type call struct {
	op       string
	agent    contract.AgentContext
	targets  []string
	scope    string
	mutating bool
	opts     contract.MutationOptions
}

func read(op string, agent contract.AgentContext, targets ...string) call {
	return call{op: op, agent: agent, targets: targets}
}

func mutation(op string, agent contract.AgentContext, opts contract.MutationOptions, scope string, targets ...string) call {
	return call{op: op, agent: agent, targets: targets, scope: scope, mutating: true, opts: opts}
}

func (c call) target() string {
	if len(c.targets) == 0 {
		return ""
	}
	return c.targets[0]
}

// run executes exec behind the guard pipeline. Mutations hold the write lock
// from the idempotency lookup through finalization so a key never executes
// twice.
func run[T any](ctx context.Context, s *Service, c call, exec func() (T, error)) (res contract.Result[T]) {
	started := s.now()
	defer func() { s.finish(ctx, c, res.Error, started) }()

	if ok, retryAfter := s.limiter.TryConsume(c.agent.AgentID); !ok {
		return failed[T](rateLimited(retryAfter), 0)
	}

	if c.mutating {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	key := c.opts.IdempotencyKey
	if c.mutating && key != "" {
		if prior, ok := s.idem.Lookup(c.agent.AgentID, key); ok {
			if rec, ok := prior.(replay); ok && rec.op == c.op {
				if r, ok := rec.result.(contract.Result[T]); ok {
					return r
				}
			}
			return failed[T](toError(fmt.Errorf("%s: %w", key, ErrIdempotencyReused)), 0)
		}
	}

	if e := authorize(c); e != nil {
		return failed[T](e, 0)
	}

	for _, id := range c.targets {
		if id != "" && !s.tree.Has(id) {
			return failed[T](newError(contract.ErrNotFound, fmt.Sprintf("node %s not found", id)), 0)
		}
	}

	scope := c.scope
	if scope == "" {
		scope = s.tree.RootID()
	}
	if c.mutating {
		if cur, ok := s.versions.Check(scope, c.opts.VersionToken); !ok {
			return failed[T](versionConflict(cur), cur)
		}
	}

	data, err := exec()
	if err != nil {
		return failed[T](toError(err), s.versions.Current(scope))
	}
	res = contract.Result[T]{Success: true, Data: data}
	if !c.mutating {
		res.Version = s.versions.Current(scope)
		return res
	}
	res.Version, _ = s.versions.TryCheckAndBump(scope, nil)
	if key != "" {
		s.idem.Store(c.agent.AgentID, key, replay{op: c.op, result: res})
	}
	return res
}

// replay is the idempotency record for a key: the result and the operation
// that produced it.
type replay struct {
	op     string
	result any
}

func failed[T any](e *contract.Error, version int64) contract.Result[T] {
	return contract.Result[T]{Error: e, Version: version}
}

func authorize(c call) *contract.Error {
	if c.mutating && !c.agent.CanMutate() {
		return newError(contract.ErrForbidden, fmt.Sprintf("agent %q may not run %s", c.agent.AgentID, c.op))
	}
	if !c.agent.CanRead() {
		return newError(contract.ErrForbidden, fmt.Sprintf("agent %q has no role", c.agent.AgentID))
	}
	return nil
}

// finish emits the audit entry and the observer event for a completed call.
func (s *Service) finish(ctx context.Context, c call, e *contract.Error, started time.Time) {
	entry := contract.AuditEntry{
		Operation: c.op,
		AgentID:   c.agent.AgentID,
		Target:    c.target(),
		Success:   e == nil,
		Timestamp: started,
	}
	if e != nil {
		entry.ErrorCode = e.Code
		entry.Message = e.Message
	}
	if err := s.audit.RecordAudit(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit sink failed",
			"operation", c.op,
			"agent_id", c.agent.AgentID,
			"error", err,
		)
	}
	s.observer.ObserveCall(ctx, CallEvent{
		Operation: c.op,
		AgentID:   c.agent.AgentID,
		Target:    c.target(),
		Duration:  s.now().Sub(started),
		Success:   e == nil,
		Code:      entry.ErrorCode,
		StartedAt: started,
	})
}
