// Package statsserver exposes a Core's contention counters over HTTP using
// github.com/valyala/fasthttp, the teacher's fasthttp dependency (wired
// there only as a logging adapter in compat/fasthttp.go) put to its more
// natural use here: serving requests.
package statsserver

import (
	"encoding/json"

	"github.com/sf-wind/mlbenchlog"
	"github.com/valyala/fasthttp"
)

// Server is a minimal fasthttp-based HTTP endpoint for a Core's diagnostic
// counters, intended for a benchmark harness's own operability, not for
// spec.md's protocol itself — nothing here touches the lock-free path.
type Server struct {
	core   *mlbench.Core
	server *fasthttp.Server
}

// New builds a Server around core. Call ListenAndServe to start it.
func New(core *mlbench.Core) *Server {
	s := &Server{core: core}
	s.server = &fasthttp.Server{
		Handler: s.handle,
		Name:    "mlbenchlog-statsserver",
	}
	return s
}

// ListenAndServe blocks serving HTTP on addr until the listener errors or
// is closed via Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	return s.server.ListenAndServe(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		snap := s.core.Snapshot()
		body, err := json.Marshal(snap)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString(err.Error())
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
