package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/codec"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

// snapshot is a named JSON capture of a subtree with its view state and
// tags.
type snapshot struct {
	info contract.SnapshotInfo
	data []byte
}

func (s *Service) CreateSnapshot(ctx context.Context, agent contract.AgentContext, req contract.CreateSnapshotRequest) contract.Result[contract.SnapshotInfo] {
	return run(ctx, s, mutation("CreateSnapshot", agent, req.MutationOptions, "", req.NodeID), func() (contract.SnapshotInfo, error) {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return contract.SnapshotInfo{}, fmt.Errorf("snapshot name is required: %w", ErrInvalidArgument)
		}
		rootID := s.orRoot(req.NodeID)
		doc, err := s.document(rootID, true, true)
		if err != nil {
			return contract.SnapshotInfo{}, err
		}
		data, err := codec.Encode(s.registry, doc, codec.Options{Format: codec.FormatJSON, Compact: true})
		if err != nil {
			return contract.SnapshotInfo{}, fmt.Errorf("encode snapshot: %w", err)
		}
		snap := &snapshot{
			info: contract.SnapshotInfo{
				ID:        s.newID(),
				Name:      name,
				RootID:    rootID,
				CreatedBy: agent.AgentID,
				CreatedAt: s.now().UTC(),
				NodeCount: doc.Root.Count(),
			},
			data: data,
		}
		s.snapshots = append(s.snapshots, snap)
		return snap.info, nil
	})
}

// RestoreSnapshot replaces the snapshot's root subtree with the captured
// state. The root node must still exist.
func (s *Service) RestoreSnapshot(ctx context.Context, agent contract.AgentContext, req contract.RestoreSnapshotRequest) contract.Result[contract.SnapshotInfo] {
	return run(ctx, s, mutation("RestoreSnapshot", agent, req.MutationOptions, ""), func() (contract.SnapshotInfo, error) {
		snap, _, err := s.findSnapshot(req.SnapshotID)
		if err != nil {
			return contract.SnapshotInfo{}, err
		}
		if !s.tree.Has(snap.info.RootID) {
			return contract.SnapshotInfo{}, fmt.Errorf("snapshot root %s: %w", snap.info.RootID, tree.ErrNotFound)
		}
		doc, err := codec.Decode(snap.data, codec.Options{Format: codec.FormatJSON})
		if err != nil {
			return contract.SnapshotInfo{}, err
		}
		if _, err := s.apply(snap.info.RootID, doc, importReplace, true, true); err != nil {
			return contract.SnapshotInfo{}, err
		}
		return snap.info, nil
	})
}

func (s *Service) DeleteSnapshot(ctx context.Context, agent contract.AgentContext, req contract.DeleteSnapshotRequest) contract.Result[contract.SnapshotInfo] {
	return run(ctx, s, mutation("DeleteSnapshot", agent, req.MutationOptions, ""), func() (contract.SnapshotInfo, error) {
		snap, i, err := s.findSnapshot(req.SnapshotID)
		if err != nil {
			return contract.SnapshotInfo{}, err
		}
		s.snapshots = slices.Delete(s.snapshots, i, i+1)
		return snap.info, nil
	})
}

// ListSnapshots returns snapshot metadata in creation order.
func (s *Service) ListSnapshots(ctx context.Context, agent contract.AgentContext, _ contract.ListSnapshotsRequest) contract.Result[[]contract.SnapshotInfo] {
	return run(ctx, s, read("ListSnapshots", agent), func() ([]contract.SnapshotInfo, error) {
		out := make([]contract.SnapshotInfo, len(s.snapshots))
		for i, snap := range s.snapshots {
			out[i] = snap.info
		}
		return out, nil
	})
}

func (s *Service) findSnapshot(id string) (*snapshot, int, error) {
	i := slices.IndexFunc(s.snapshots, func(snap *snapshot) bool { return snap.info.ID == id })
	if i < 0 {
		return nil, -1, fmt.Errorf("%s: %w", id, ErrSnapshotNotFound)
	}
	return s.snapshots[i], i, nil
}
