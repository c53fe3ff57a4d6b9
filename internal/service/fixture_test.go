package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	house *testutil.House
	audit *MemoryAuditSink
	clock *testutil.Clock
	ctx   context.Context
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cfg   Config
	house []testutil.HouseOption
	opts  []Option
}

func withConfig(fn func(*Config)) fixtureOption {
	return func(c *fixtureConfig) { fn(&c.cfg) }
}

func withHouse(opts ...testutil.HouseOption) fixtureOption {
	return func(c *fixtureConfig) { c.house = append(c.house, opts...) }
}

func withOptions(opts ...Option) fixtureOption {
	return func(c *fixtureConfig) { c.opts = append(c.opts, opts...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	fc := fixtureConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&fc)
	}
	f := &fixture{
		house: testutil.NewHouse(t, fc.house...),
		audit: &MemoryAuditSink{},
		clock: testutil.NewClock(),
		ctx:   context.Background(),
	}
	svcOpts := append([]Option{
		WithClock(f.clock.Now),
		WithAuditSink(f.audit),
		WithIDGenerator(testutil.SequentialIDs("x")),
	}, fc.opts...)
	svc, err := NewFromTree(f.house.Tree, fc.cfg, svcOpts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	f.svc = svc
	return f
}

func (f *fixture) id(t *testing.T, name string) string {
	t.Helper()
	return f.house.ID(t, name)
}

var (
	editor = testutil.Editor("editor-1")
	reader = testutil.Reader("reader-1")
)

func requireOK[T any](t *testing.T, res contract.Result[T]) T {
	t.Helper()
	require.True(t, res.Success, "unexpected failure: %v", res.Err())
	return res.Data
}

func requireCode[T any](t *testing.T, res contract.Result[T], code contract.ErrorCode) *contract.Error {
	t.Helper()
	require.False(t, res.Success, "expected %s, call succeeded", code)
	require.NotNil(t, res.Error)
	require.Equal(t, code, res.Error.Code, res.Error.Message)
	return res.Error
}

func names(items []contract.NodeInfo) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i], _ = it.Properties["Name"].(string)
	}
	return out
}

func childNames(t *testing.T, f *fixture, parent string) []string {
	t.Helper()
	page := requireOK(t, f.svc.ListChildren(f.ctx, editor, contract.ListChildrenRequest{NodeID: f.id(t, parent)}))
	return names(page.Items)
}

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
