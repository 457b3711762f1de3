// Package ctrlserver is a tiny line-oriented TCP control listener for a
// Core, built on github.com/panjf2000/gnet/v2 — the teacher's gnet
// dependency, wired there only as a logging adapter in compat/gnet.go, put
// to its more natural use here: an actual event-driven network server.
//
// Supported commands, one per line: STOP, FLUSH, RESTART-LATENCY.
package ctrlserver

import (
	"bytes"
	"context"
	"time"

	"github.com/panjf2000/gnet/v2"
	"github.com/sf-wind/mlbenchlog"
)

// Server is a gnet event engine that relays line commands into Core control
// calls. It does not participate in spec.md's lock-free path; every command
// goes through the same Core methods an operator's own code would call.
type Server struct {
	gnet.BuiltinEventEngine
	core    *mlbench.Core
	timeout time.Duration
}

// New builds a Server for core. timeout bounds every blocking Core call the
// server issues in response to a command.
func New(core *mlbench.Core, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{core: core, timeout: timeout}
}

// Run blocks serving control connections on addr (e.g. "tcp://:9600").
func (s *Server) Run(addr string) error {
	return gnet.Run(s, addr, gnet.WithMulticore(true))
}

// OnTraffic dispatches each newline-terminated command synchronously. gnet
// serializes callbacks within one event loop; Run enables multicore mode,
// so connections on different event loops may dispatch concurrently, and
// the Core calls they trigger follow the same concurrency rules as any
// other caller.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	buf, _ := c.Next(-1)
	for _, line := range bytes.Split(buf, []byte("\n")) {
		cmd := bytes.TrimSpace(line)
		if len(cmd) == 0 {
			continue
		}
		reply := s.dispatch(cmd)
		_, _ = c.Write(reply)
	}
	return gnet.None
}

func (s *Server) dispatch(cmd []byte) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch string(cmd) {
	case "STOP":
		if err := s.core.Stop(ctx); err != nil {
			return []byte("ERR " + err.Error() + "\n")
		}
		return []byte("OK\n")
	case "FLUSH":
		if err := s.core.StopLogging(ctx); err != nil {
			return []byte("ERR " + err.Error() + "\n")
		}
		return []byte("OK\n")
	case "RESTART-LATENCY":
		s.core.RestartLatencyRecording()
		return []byte("OK\n")
	default:
		return []byte("ERR unknown command\n")
	}
}
