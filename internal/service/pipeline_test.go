package service

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPipeline_IdempotentReplayIsPerAgent(t *testing.T) {
	f := newFixture(t)
	add := contract.AddChildRequest{
		MutationOptions: contract.MutationOptions{IdempotencyKey: "add-den"},
		ParentID:        f.id(t, "Level1b"),
		PayloadType:     testutil.TypeRoom,
		Properties:      map[string]any{"Name": "Den"},
	}

	first := requireOK(t, f.svc.AddChild(f.ctx, editor, add))
	replayed := f.svc.AddChild(f.ctx, editor, add)
	require.True(t, replayed.Success)
	assert.Equal(t, first.NodeID, replayed.Data.NodeID)
	assert.Equal(t, []string{"Garage", "Den"}, childNames(t, f, "Level1b"))

	other := requireOK(t, f.svc.AddChild(f.ctx, testutil.Editor("editor-2"), add))
	assert.NotEqual(t, first.NodeID, other.NodeID)
	assert.Equal(t, []string{"Garage", "Den", "Den"}, childNames(t, f, "Level1b"))
}

func TestPipeline_ReplayKeepsOriginalVersion(t *testing.T) {
	f := newFixture(t)
	add := contract.AddChildRequest{
		MutationOptions: contract.MutationOptions{IdempotencyKey: "k"},
		PayloadType:     testutil.TypeFolder,
		Properties:      map[string]any{"Name": "Attic"},
	}
	first := f.svc.AddChild(f.ctx, editor, add)
	require.True(t, first.Success)

	again := f.svc.AddChild(f.ctx, editor, add)
	assert.Equal(t, first.Version, again.Version)

	v := requireOK(t, f.svc.GetVersion(f.ctx, editor, contract.GetVersionRequest{}))
	assert.Equal(t, int64(1), v)
}

func TestPipeline_KeyReusedByAnotherOperation(t *testing.T) {
	f := newFixture(t)
	opts := contract.MutationOptions{IdempotencyKey: "shared"}

	requireOK(t, f.svc.AddTags(f.ctx, editor, contract.TagsRequest{MutationOptions: opts, NodeID: f.id(t, "Kitchen"), Tags: []string{"food"}}))
	res := f.svc.RemoveNode(f.ctx, editor, contract.RemoveNodeRequest{MutationOptions: opts, NodeID: f.id(t, "Garage")})
	requireCode(t, res, contract.ErrConflict)
}

func TestPipeline_KeyReusedWithSameResultType(t *testing.T) {
	f := newFixture(t)
	opts := contract.MutationOptions{IdempotencyKey: "den"}

	requireOK(t, f.svc.AddChild(f.ctx, editor, contract.AddChildRequest{
		MutationOptions: opts,
		ParentID:        f.id(t, "Level1b"),
		PayloadType:     testutil.TypeRoom,
		Properties:      map[string]any{"Name": "Den"},
	}))
	res := f.svc.UpdatePayloadProperty(f.ctx, editor, contract.UpdatePayloadPropertyRequest{
		MutationOptions: opts,
		NodeID:          f.id(t, "Kitchen"),
		PropertyName:    "Name",
		Value:           "Galley",
	})
	requireCode(t, res, contract.ErrConflict)

	assert.Equal(t, []string{"Kitchen", "Bedroom", "Bathroom"}, childNames(t, f, "Level1a"))
}

func TestPipeline_FailedMutationIsNotCached(t *testing.T) {
	f := newFixture(t)
	opts := contract.MutationOptions{IdempotencyKey: "retry-me"}

	bad := f.svc.AddChild(f.ctx, editor, contract.AddChildRequest{MutationOptions: opts, PayloadType: "Attic"})
	requireCode(t, bad, contract.ErrInvalidArgument)

	good := f.svc.AddChild(f.ctx, editor, contract.AddChildRequest{MutationOptions: opts, PayloadType: testutil.TypeFolder})
	requireOK(t, good)
}

func TestPipeline_RateLimitWithRetryAfter(t *testing.T) {
	f := newFixture(t, withConfig(func(c *Config) {
		c.RateCapacity = 2
		c.RefillPeriod = time.Minute
	}))
	get := contract.GetNodeRequest{NodeID: f.id(t, "Kitchen")}

	requireOK(t, f.svc.GetNode(f.ctx, editor, get))
	f.clock.Advance(10 * time.Second)
	requireOK(t, f.svc.GetNode(f.ctx, editor, get))

	e := requireCode(t, f.svc.GetNode(f.ctx, editor, get), contract.ErrRateLimited)
	require.NotNil(t, e.RetryAfter)
	assert.Equal(t, 50*time.Second, *e.RetryAfter)

	// Other agents have their own bucket.
	requireOK(t, f.svc.GetNode(f.ctx, reader, get))

	f.clock.Advance(50 * time.Second)
	requireOK(t, f.svc.GetNode(f.ctx, editor, get))
}

func TestPipeline_VersionConflict(t *testing.T) {
	f := newFixture(t)
	scope := f.id(t, "Level1a")

	v := requireOK(t, f.svc.GetVersion(f.ctx, editor, contract.GetVersionRequest{Scope: scope}))
	require.Equal(t, int64(0), v)

	add := contract.AddChildRequest{
		MutationOptions: contract.MutationOptions{VersionToken: testutil.Ptr(int64(0))},
		ParentID:        scope,
		PayloadType:     testutil.TypeRoom,
		Properties:      map[string]any{"Name": "Pantry"},
	}
	res := f.svc.AddChild(f.ctx, editor, add)
	requireOK(t, res)
	assert.Equal(t, int64(1), res.Version)

	stale := f.svc.AddChild(f.ctx, editor, add)
	e := requireCode(t, stale, contract.ErrConflict)
	require.NotNil(t, e.CurrentVersion)
	assert.Equal(t, int64(1), *e.CurrentVersion)
	assert.Equal(t, int64(1), stale.Version)

	// Other scopes are unaffected.
	root := requireOK(t, f.svc.GetVersion(f.ctx, editor, contract.GetVersionRequest{}))
	assert.Equal(t, int64(0), root)
}

func TestPipeline_ConcurrentBumpsAreNotLost(t *testing.T) {
	f := newFixture(t)
	parent := f.id(t, "Level1b")

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			res := f.svc.AddChild(f.ctx, editor, contract.AddChildRequest{
				ParentID:    parent,
				PayloadType: testutil.TypeRoom,
				Properties:  map[string]any{"Name": fmt.Sprintf("Closet %d", i)},
			})
			return res.Err()
		})
	}
	require.NoError(t, g.Wait())

	v := requireOK(t, f.svc.GetVersion(f.ctx, editor, contract.GetVersionRequest{Scope: parent}))
	assert.Equal(t, int64(16), v)
	assert.Len(t, childNames(t, f, "Level1b"), 17)
}

func TestPipeline_RoleChecks(t *testing.T) {
	f := newFixture(t)
	remove := contract.RemoveNodeRequest{NodeID: f.id(t, "Garage")}

	requireCode(t, f.svc.RemoveNode(f.ctx, reader, remove), contract.ErrForbidden)
	requireCode(t, f.svc.RemoveNode(f.ctx, testutil.ReadOnly("ro"), remove), contract.ErrForbidden)
	requireCode(t, f.svc.GetNode(f.ctx, contract.NewAgentContext("nobody"), contract.GetNodeRequest{}), contract.ErrForbidden)

	requireOK(t, f.svc.GetNode(f.ctx, reader, contract.GetNodeRequest{NodeID: f.id(t, "Garage")}))
	requireOK(t, f.svc.RemoveNode(f.ctx, testutil.Admin("root"), remove))
}

func TestPipeline_MissingTarget(t *testing.T) {
	f := newFixture(t)

	requireCode(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{NodeID: "missing"}), contract.ErrNotFound)
	requireCode(t, f.svc.MoveNode(f.ctx, editor, contract.MoveNodeRequest{NodeID: f.id(t, "Kitchen"), NewParentID: "missing"}), contract.ErrNotFound)
}

func TestPipeline_AuditsEveryCallOnce(t *testing.T) {
	f := newFixture(t, withConfig(func(c *Config) { c.RateCapacity = 3 }))

	requireOK(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{NodeID: f.id(t, "Kitchen")}))
	requireCode(t, f.svc.RemoveNode(f.ctx, reader, contract.RemoveNodeRequest{NodeID: f.id(t, "Kitchen")}), contract.ErrForbidden)
	requireOK(t, f.svc.AddTags(f.ctx, editor, contract.TagsRequest{NodeID: f.id(t, "Kitchen"), Tags: []string{"food"}}))
	requireOK(t, f.svc.ListTags(f.ctx, editor, contract.ListTagsRequest{}))
	requireCode(t, f.svc.ListTags(f.ctx, editor, contract.ListTagsRequest{}), contract.ErrRateLimited)

	entries := f.audit.Entries()
	require.Len(t, entries, 5)

	ops := make([]string, len(entries))
	for i, e := range entries {
		ops[i] = e.Operation
	}
	assert.Equal(t, []string{"GetNode", "RemoveNode", "AddTags", "ListTags", "ListTags"}, ops)

	assert.True(t, entries[0].Success)
	assert.Equal(t, f.id(t, "Kitchen"), entries[0].Target)
	assert.Equal(t, "reader-1", entries[1].AgentID)
	assert.Equal(t, contract.ErrForbidden, entries[1].ErrorCode)
	assert.Equal(t, contract.ErrRateLimited, entries[4].ErrorCode)
	assert.Equal(t, f.clock.Now(), entries[0].Timestamp)
}

func TestPipeline_AuditFailureDoesNotFailCall(t *testing.T) {
	sink := &testutil.FailingAuditSink{Err: errors.New("sink down")}
	var logs bytes.Buffer
	f := newFixture(t, withOptions(WithAuditSink(sink), WithLogger(newTestLogger(&logs))))

	requireOK(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{}))
	assert.Equal(t, 1, sink.Calls())
	assert.Contains(t, logs.String(), "audit sink failed")
	assert.Contains(t, logs.String(), "sink down")
}

func TestPipeline_MetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsObserver(reg)
	require.NoError(t, err)
	f := newFixture(t, withOptions(WithObserver(metrics)))

	requireOK(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{}))
	requireOK(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{NodeID: f.id(t, "Kitchen")}))
	requireCode(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{NodeID: "missing"}), contract.ErrNotFound)

	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.calls.WithLabelValues("GetNode", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.calls.WithLabelValues("GetNode", "not_found")))
	assert.Equal(t, 1, promtest.CollectAndCount(metrics.duration))

	_, err = NewMetricsObserver(reg)
	assert.Error(t, err, "collectors register once per registry")
}

func TestPipeline_LogObserver(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, withOptions(WithObserver(MultiCallObserver(nil, NewLogCallObserver(&buf)))))

	requireOK(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{}))
	requireCode(t, f.svc.GetNode(f.ctx, editor, contract.GetNodeRequest{NodeID: "missing"}), contract.ErrNotFound)

	out := buf.String()
	assert.Contains(t, out, "msg=service_call")
	assert.Contains(t, out, "operation=GetNode")
	assert.Contains(t, out, "agent_id=editor-1")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "error_code=not_found")
}

func TestPipeline_LogAuditSink(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, withOptions(WithAuditSink(NewLogAuditSink(&buf))))

	requireCode(t, f.svc.RemoveNode(f.ctx, testutil.Reader("r1"), contract.RemoveNodeRequest{NodeID: f.id(t, "Garage")}), contract.ErrForbidden)

	out := buf.String()
	assert.Contains(t, out, "msg=audit")
	assert.Contains(t, out, "operation=RemoveNode")
	assert.Contains(t, out, "agent_id=r1")
	assert.Contains(t, out, "success=false")
	assert.Contains(t, out, "error_code=forbidden")
}
