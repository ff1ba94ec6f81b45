// Package proxy implementa el multiplexor que permite que muchos
// trabajadores compartan una unica conexion con el coordinador: cada
// trabajador que se conecta al proxy recibe su propio cid del
// coordinador real la primera vez que envia NEW, y a partir de ahi el
// proxy reenvia cada frame verbatim en la direccion correcta segun su cid.
//
// Igual que internal/coordinator, el proxy original (proxy_loop.cpp) es un
// unico hilo con select() sobre todos los descriptores; aqui se preserva
// esa propiedad con un goroutine propietario unico que posee el mapa
// cid -> conexion descendente y la cola de conexiones aun sin asignar,
// alimentado por goroutines lectores que solo reenvian frames por canal.
package proxy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"lnrc/internal/tlv"
)

// reconnectDelay is how long the proxy waits before redialing the
// coordinator after the upstream connection drops, matching the 1-second
// retry proxy_thread uses in proxy_loop.cpp.
const reconnectDelay = time.Second

type source int

const (
	fromUpstream source = iota
	fromDownstream
)

type event struct {
	src   source
	conn  net.Conn // only set for fromDownstream
	frame tlv.Frame
	err   error
}

// Proxy listens for downstream worker connections and relays them through
// a single upstream connection to the real coordinator.
type Proxy struct {
	ListenAddr   string
	UpstreamAddr string
	Logger       *log.Logger

	events chan event

	mu       sync.Mutex
	newConns []net.Conn
}

// New builds a Proxy that listens on listenAddr and forwards to
// upstreamAddr.
func New(listenAddr, upstreamAddr string, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.Default()
	}
	return &Proxy{
		ListenAddr:   listenAddr,
		UpstreamAddr: upstreamAddr,
		Logger:       logger,
		events:       make(chan event, 64),
	}
}

// Run listens on p.ListenAddr and keeps exactly one upstream connection to
// p.UpstreamAddr alive, redialing after reconnectDelay whenever it drops,
// until ctx is cancelled.
func (p *Proxy) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return p.Serve(ctx, ln)
}

// Serve runs the proxy against an already-bound listener, letting callers
// (tests, or a process that wants the kernel-assigned port before Run
// blocks) observe the real address.
func (p *Proxy) Serve(ctx context.Context, ln net.Listener) error {
	p.ListenAddr = ln.Addr().String()
	go p.acceptLoop(ctx, ln)

	for {
		if err := p.runUpstreamSession(ctx); err != nil {
			p.Logger.Warn("upstream session ended", "err", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Proxy) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		p.newConns = append(p.newConns, conn)
		p.mu.Unlock()
		select {
		case p.events <- event{}:
		case <-ctx.Done():
			return
		}
	}
}

// runUpstreamSession owns the downstream map and the pending queue for the
// lifetime of a single upstream connection; when the upstream connection
// drops, every downstream connection still attached is torn down too,
// exactly as proxy_loop.cpp's cleanup-on-disconnect behaviour.
func (p *Proxy) runUpstreamSession(ctx context.Context) error {
	up, err := net.Dial("tcp", p.UpstreamAddr)
	if err != nil {
		return err
	}
	defer up.Close()

	go p.readLoop(fromUpstream, up)

	downstream := make(map[uint16]net.Conn)
	var pending []net.Conn

	defer func() {
		for _, c := range downstream {
			c.Close()
		}
		for _, c := range pending {
			c.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			p.drainNewConns(&pending)
			if ev.frame.Type == 0 && ev.err == nil {
				continue // wakeup-only event from the accept loop
			}
			if err := p.handle(ev, up, downstream, &pending); err != nil {
				return err
			}
		}
	}
}

func (p *Proxy) drainNewConns(pending *[]net.Conn) {
	p.mu.Lock()
	claimed := p.newConns
	p.newConns = nil
	p.mu.Unlock()

	for _, conn := range claimed {
		go p.readLoop(fromDownstream, conn)
		*pending = append(*pending, conn)
	}
}

func (p *Proxy) readLoop(src source, conn net.Conn) {
	for {
		f, err := tlv.Read(conn)
		p.events <- event{src: src, conn: conn, frame: f, err: err}
		if err != nil {
			return
		}
	}
}

// handle processes one event from either side; only ever called from the
// owner loop in runUpstreamSession.
func (p *Proxy) handle(ev event, up net.Conn, downstream map[uint16]net.Conn, pending *[]net.Conn) error {
	if ev.src == fromUpstream {
		if ev.err != nil {
			return ev.err // upstream connection dropped: tear down the session
		}
		dst, bound := downstream[ev.frame.CID]
		if !bound && len(*pending) > 0 {
			dst = (*pending)[0]
			*pending = (*pending)[1:]
			downstream[ev.frame.CID] = dst
			bound = true
		}
		if !bound {
			p.Logger.Warn("upstream frame for unknown cid", "cid", ev.frame.CID, "type", ev.frame.Type)
			return nil
		}
		if err := tlv.Write(dst, ev.frame); err != nil {
			delete(downstream, ev.frame.CID)
			dst.Close()
		}
		if ev.frame.Type == tlv.TypeStop {
			delete(downstream, ev.frame.CID)
			dst.Close()
		}
		return nil
	}

	// fromDownstream
	if ev.err != nil {
		p.forgetDownstream(ev.conn, up, downstream, pending)
		return nil
	}
	if err := tlv.Write(up, ev.frame); err != nil {
		return err // losing the upstream write means the whole session is dead
	}
	return nil
}

func (p *Proxy) forgetDownstream(conn net.Conn, up net.Conn, downstream map[uint16]net.Conn, pending *[]net.Conn) {
	for cid, c := range downstream {
		if c == conn {
			_ = tlv.Write(up, tlv.NewFrame64(tlv.TypeStop, cid, 0))
			delete(downstream, cid)
			conn.Close()
			return
		}
	}
	for i, c := range *pending {
		if c == conn {
			*pending = append((*pending)[:i], (*pending)[i+1:]...)
			conn.Close()
			return
		}
	}
}
