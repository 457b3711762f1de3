package ctrlserver

import (
	"context"
	"testing"
	"time"

	"github.com/sf-wind/mlbenchlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedCore(t *testing.T) *mlbench.Core {
	t.Helper()
	cfg := mlbench.DefaultConfig()
	cfg.PollPeriod = time.Millisecond
	core, err := mlbench.NewCore(cfg, mlbench.NewDiscardSink())
	require.NoError(t, err)
	require.NoError(t, core.Start(context.Background()))
	return core
}

func TestDispatchRestartLatency(t *testing.T) {
	core := startedCore(t)
	defer core.Stop(context.Background())
	srv := New(core, time.Second)

	reply := srv.dispatch([]byte("RESTART-LATENCY"))
	assert.Equal(t, "OK\n", string(reply))
}

func TestDispatchFlush(t *testing.T) {
	core := startedCore(t)
	defer core.Stop(context.Background())
	srv := New(core, time.Second)

	reply := srv.dispatch([]byte("FLUSH"))
	assert.Equal(t, "OK\n", string(reply))
}

func TestDispatchUnknownCommand(t *testing.T) {
	core := startedCore(t)
	defer core.Stop(context.Background())
	srv := New(core, time.Second)

	reply := srv.dispatch([]byte("NOT-A-COMMAND"))
	assert.Equal(t, "ERR unknown command\n", string(reply))
}

func TestDispatchStop(t *testing.T) {
	core := startedCore(t)
	srv := New(core, time.Second)

	reply := srv.dispatch([]byte("STOP"))
	assert.Equal(t, "OK\n", string(reply))
}

func TestNewDefaultsTimeout(t *testing.T) {
	core := startedCore(t)
	defer core.Stop(context.Background())

	srv := New(core, 0)
	assert.Equal(t, 5*time.Second, srv.timeout)
}
