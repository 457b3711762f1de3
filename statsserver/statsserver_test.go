package statsserver

import (
	"encoding/json"
	"testing"

	"github.com/sf-wind/mlbenchlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestRequestCtx(path string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.SetRequestURI(path)
	ctx.Init(&req, nil, nil)
	return &ctx
}

func TestHealthzReturnsOK(t *testing.T) {
	core, err := mlbench.NewCore(mlbench.DefaultConfig(), mlbench.NewDiscardSink())
	require.NoError(t, err)
	srv := New(core)

	ctx := newTestRequestCtx("/healthz")
	srv.handle(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "ok", string(ctx.Response.Body()))
}

func TestStatsReturnsCounterSnapshotAsJSON(t *testing.T) {
	core, err := mlbench.NewCore(mlbench.DefaultConfig(), mlbench.NewDiscardSink())
	require.NoError(t, err)
	srv := New(core)

	ctx := newTestRequestCtx("/stats")
	srv.handle(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var snap mlbench.ContentionCounters
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &snap))
	assert.Equal(t, uint64(0), snap.LogCasFailCount)
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	core, err := mlbench.NewCore(mlbench.DefaultConfig(), mlbench.NewDiscardSink())
	require.NoError(t, err)
	srv := New(core)

	ctx := newTestRequestCtx("/nope")
	srv.handle(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}
