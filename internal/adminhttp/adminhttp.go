// Package adminhttp exposes a tiny read-only HTTP/1.0 surface in front of
// a running coordinator: GET /status for a JSON snapshot of connection
// and progress counters, GET /metrics for the same numbers rendered as
// plain-text gauges. It reuses internal/http10's request parser and
// response writer and internal/resp's Result/ErrObj shape, dispatching to
// a coordinator status snapshot instead of an HTTP route table.
package adminhttp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"lnrc/internal/coordinator"
	"lnrc/internal/http10"
	"lnrc/internal/resp"
	"lnrc/internal/util"
)

// Source is anything that can report a coordinator.Status; satisfied by
// *coordinator.Coordinator.
type Source interface {
	Status(ctx context.Context) (coordinator.Status, error)
}

// Server serves /status and /metrics for one coordinator.
type Server struct {
	Addr   string
	Source Source
	Logger *log.Logger

	startedAt time.Time
	connCount uint64
}

// New builds a Server reporting src's status on addr.
func New(addr string, src Source, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Addr: addr, Source: src, Logger: logger, startedAt: time.Now()}
}

// ListenAndServe accepts connections on s.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, handling each in its own goroutine,
// until ctx is cancelled or ln stops accepting.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		atomic.AddUint64(&s.connCount, 1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn parses one HTTP/1.0 request and writes exactly one response:
// a request-id trace header, a dispatch by method+path, then a plain or
// JSON write depending on the route.
func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	trace := map[string]string{
		"X-Request-Id": util.NewReqID(),
		"Connection":   "close",
	}

	r := bufio.NewReader(c)
	req, err := http10.ParseRequest(r)
	if err != nil {
		http10.WriteErrorJSON(c, 400, "bad_request", err.Error(), trace)
		return
	}

	if req.Method != "GET" {
		res := resp.BadReq("method_not_allowed", "only GET is supported")
		http10.WriteErrorJSON(c, res.Status, res.Err.Code, res.Err.Detail, trace)
		return
	}

	res := s.dispatch(ctx, req.Path, req.Query)

	if res.JSON {
		if res.Err != nil {
			http10.WriteErrorJSON(c, res.Status, res.Err.Code, res.Err.Detail, trace)
		} else {
			http10.WriteJSONH(c, res.Status, res.Body, trace)
		}
		return
	}
	http10.WritePlainH(c, res.Status, res.Body, trace)
}

func (s *Server) dispatch(ctx context.Context, path string, query map[string]string) resp.Result {
	switch path {
	case "/status":
		return s.status(ctx)
	case "/metrics":
		return s.metrics(ctx, query["format"] == "json")
	default:
		return resp.NotFound("not_found", "unknown route "+path)
	}
}

func (s *Server) status(ctx context.Context) resp.Result {
	st, err := s.Source.Status(ctx)
	if err != nil {
		return resp.Unavail("status_unavailable", err.Error())
	}
	out := map[string]any{
		"uptime_ms":   time.Since(s.startedAt).Milliseconds(),
		"started_at":  s.startedAt.UTC().Format(time.RFC3339Nano),
		"admin_conns": atomic.LoadUint64(&s.connCount),
		"connections": st.Connections,
		"done_count":  st.DoneCount,
		"next_cid":    st.NextCID,
		"rate":        st.Rate,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return resp.IntErr("encode_failed", err.Error())
	}
	return resp.JSONOK(string(b))
}

// metrics renders the same numbers as /status in a flat "key value" form,
// one per line, the simplest shape a scrape script can parse without a
// JSON dependency. A "?format=json" query parameter switches the body to
// the same JSON shape /status returns, for callers that already have a
// JSON client handy and would rather not write a line-parser.
func (s *Server) metrics(ctx context.Context, asJSON bool) resp.Result {
	st, err := s.Source.Status(ctx)
	if err != nil {
		return resp.Unavail("status_unavailable", err.Error())
	}
	if asJSON {
		return s.status(ctx)
	}
	body := "lnrc_connections " + strconv.Itoa(st.Connections) + "\n" +
		"lnrc_done_count " + strconv.FormatUint(st.DoneCount, 10) + "\n" +
		"lnrc_next_cid " + strconv.Itoa(int(st.NextCID)) + "\n" +
		"lnrc_rate " + strconv.FormatUint(st.Rate, 10) + "\n" +
		"lnrc_admin_conns " + strconv.FormatUint(atomic.LoadUint64(&s.connCount), 10) + "\n"
	return resp.PlainOK(body)
}
