package service

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

// DiffTrees compares two subtrees position by position. Differences are
// nested maps keyed by NodeId, PayloadType, Payload.<name>, Tags,
// Children.count and Children[i]; each leaf is {"left": ..., "right": ...}.
func (s *Service) DiffTrees(ctx context.Context, agent contract.AgentContext, req contract.DiffTreesRequest) contract.Result[contract.DiffResult] {
	return run(ctx, s, read("DiffTrees", agent, req.LeftID, req.RightID), func() (contract.DiffResult, error) {
		if req.LeftID == "" || req.RightID == "" {
			return contract.DiffResult{}, fmt.Errorf("left and right ids are required: %w", ErrInvalidArgument)
		}
		left, err := s.tree.Get(req.LeftID)
		if err != nil {
			return contract.DiffResult{}, err
		}
		right, err := s.tree.Get(req.RightID)
		if err != nil {
			return contract.DiffResult{}, err
		}
		d := s.diff(left, right, req)
		return contract.DiffResult{Equal: len(d) == 0, Differences: d}, nil
	})
}

func (s *Service) diff(a, b *tree.Node, opts contract.DiffTreesRequest) map[string]any {
	d := make(map[string]any)
	if opts.CompareNodeIDs && a.ID() != b.ID() {
		d["NodeId"] = leaf(a.ID(), b.ID())
	}
	if opts.CompareMetadata {
		if a.PayloadType() != b.PayloadType() {
			d["PayloadType"] = leaf(a.PayloadType(), b.PayloadType())
		}
		if ta, tb := s.tags[a.ID()], s.tags[b.ID()]; !slices.Equal(ta, tb) {
			d["Tags"] = leaf(slices.Clone(ta), slices.Clone(tb))
		}
	}
	if opts.ComparePayload {
		pa, pb := a.Properties(), b.Properties()
		names := slices.Sorted(maps.Keys(pa))
		for name := range pb {
			if _, ok := pa[name]; !ok {
				names = append(names, name)
			}
		}
		for _, name := range names {
			va, aok := pa[name]
			vb, bok := pb[name]
			if aok && bok && va == vb {
				continue
			}
			d["Payload."+name] = leaf(va, vb)
		}
	}
	if opts.CompareStructure {
		ca, cb := a.ChildIDs(), b.ChildIDs()
		if len(ca) != len(cb) {
			d["Children.count"] = leaf(len(ca), len(cb))
		}
		for i := range min(len(ca), len(cb)) {
			na, errA := s.tree.Get(ca[i])
			nb, errB := s.tree.Get(cb[i])
			if errA != nil || errB != nil {
				continue
			}
			if sub := s.diff(na, nb, opts); len(sub) > 0 {
				d[fmt.Sprintf("Children[%d]", i)] = sub
			}
		}
	}
	return d
}

func leaf(left, right any) map[string]any {
	return map[string]any{"left": left, "right": right}
}
