// Package coordinator implementa el lado servidor del protocolo: acepta
// conexiones de trabajadores, les asigna bloques de trabajo desde el
// generador LCG compartido, detecta conexiones caidas o bloques vencidos y
// persiste cada PSEUDOPRIME/PSEUDOCOMPOSITE en lnrc.log.
//
// outer_loop.cpp resuelve todo esto con un unico hilo que hace select()
// sobre todos los descriptores. Go no ofrece ese select() generico sobre
// sockets arbitrarios de forma idiomatica, asi que aqui un solo goroutine
// propietario posee todo el estado mutable (el anillo de bloques, el mapa
// de conexiones, el generador LCG) y cada conexion aceptada corre su
// propio goroutine lector que solo reenvia frames ya parseados por un
// canal. El propietario es el unico que muta estado o escribe una
// respuesta, preservando el orden total de outer_loop.cpp y la eleccion de
// fidelidad de que una escritura bloqueante a un peer lento detiene a todo
// el coordinador (ver Design Note "Single-threaded fan-out with blocking
// I/O").
package coordinator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"lnrc/internal/block"
	"lnrc/internal/lcg"
	"lnrc/internal/tlv"
)

// MaxCID es el numero maximo de conexiones simultaneas que el coordinador
// admite; MaxBlock es 32 veces ese valor, el mismo margen que
// outer_loop.cpp reserva para que ninguna conexion se quede nunca sin
// bloques DEAD que reclamar.
const (
	MaxCID   = 2048
	MaxBlock = MaxCID * 32
)

// event es un frame ya leido de una conexion, etiquetado con el cid que lo
// origino, mas cualquier error de lectura/cierre de esa conexion.
type event struct {
	cid   uint16
	frame tlv.Frame
	err   error
}

// connState is what the owner goroutine tracks per accepted connection.
type connState struct {
	conn    net.Conn
	ready   bool
	running int // slot index of the block currently assigned, or -1
}

// Coordinator owns the block ring, the connection table, and the shared
// LCG; every field below is touched only from Coordinator.run.
type Coordinator struct {
	Rate   uint64
	Logger *log.Logger
	Report Reporter

	ring    *block.Ring
	conns   map[uint16]*connState
	nextCID uint16
	events  chan event

	mu       sync.Mutex // guards only newConns, fed by Accept-loop goroutine
	newConns []net.Conn

	statusReq chan chan Status
}

// Status is a point-in-time snapshot of coordinator state, safe to read
// from outside the owner goroutine because it is built and handed back by
// the owner itself.
type Status struct {
	Connections int
	DoneCount   uint64
	NextCID     uint16
	Rate        uint64
}

// New builds a Coordinator seeded from seed with candidates produced at
// rate per second.
func New(seed, a, c, rate uint64, logger *log.Logger, report Reporter) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		// get_next's bootstrap rate for a connection's first block is
		// 20x the configured base rate (outer_loop.cpp:467); every later
		// block recomputes Rate from the previous block's measured
		// throughput in handle's TypeReady case.
		Rate:      20 * rate,
		Logger:    logger,
		Report:    report,
		ring:      block.NewRing(MaxBlock, lcg.New(a, c, seed)),
		conns:     make(map[uint16]*connState),
		events:    make(chan event, 64),
		nextCID:   1,
		statusReq: make(chan chan Status),
	}
}

// Status blocks until the owner goroutine hands back a consistent
// snapshot of its state, or ctx is cancelled. Safe to call from any
// goroutine, including an HTTP handler running alongside Serve.
func (co *Coordinator) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case co.statusReq <- reply:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Serve accepts connections on ln and runs the owner loop until ctx is
// cancelled or ln stops accepting.
func (co *Coordinator) Serve(ctx context.Context, ln net.Listener) error {
	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			co.mu.Lock()
			co.newConns = append(co.newConns, conn)
			co.mu.Unlock()
			select {
			case co.events <- event{}: // wake the owner loop
			default:
			}
		}
	}()

	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-acceptErr:
			return err
		case <-ticker.C:
			co.scanTimeouts()
		case reply := <-co.statusReq:
			reply <- Status{
				Connections: len(co.conns),
				DoneCount:   co.ring.DoneCount(),
				NextCID:     co.nextCID,
				Rate:        co.Rate,
			}
		case ev := <-co.events:
			co.drainNewConns()
			if ev.frame.Type != 0 || ev.err != nil {
				co.handle(ev)
			}
		}
	}
}

// drainNewConns claims every connection the accept-loop goroutine queued
// and spawns its reader goroutine; run only from the owner loop.
func (co *Coordinator) drainNewConns() {
	co.mu.Lock()
	pending := co.newConns
	co.newConns = nil
	co.mu.Unlock()

	for _, conn := range pending {
		cid := co.nextCID
		co.nextCID++
		co.conns[cid] = &connState{conn: conn, running: -1}
		go co.readLoop(cid, conn)
		co.Logger.Info("connection accepted", "cid", cid)
	}
}

// readLoop only parses frames off conn and forwards them to the owner; it
// never mutates coordinator state itself.
func (co *Coordinator) readLoop(cid uint16, conn net.Conn) {
	for {
		f, err := tlv.Read(conn)
		co.events <- event{cid: cid, frame: f, err: err}
		if err != nil {
			return
		}
	}
}

// handle processes one event; it is only ever called from the owner loop
// in Serve, so it may freely mutate co's state and write replies.
func (co *Coordinator) handle(ev event) {
	cs, ok := co.conns[ev.cid]
	if !ok {
		return
	}
	if ev.err != nil {
		co.dropConnection(ev.cid)
		return
	}

	switch ev.frame.Type {
	case tlv.TypeNew:
		co.replyNew(ev.cid, cs)
	case tlv.TypeReady:
		co.retireRunning(cs, time.Now())
		cs.ready = true
		co.assignBlock(ev.cid, cs)
	case tlv.TypePseudoprime, tlv.TypePseudocomposite, tlv.TypeB1:
		co.Report.Report(ev.frame.Type, ev.frame.Lo64())
	case tlv.TypeStop:
		co.dropConnection(ev.cid)
	default:
		co.Logger.Warn("unexpected frame", "cid", ev.cid, "type", ev.frame.Type)
	}
}

// replyNew answers a NEW handshake with NEW(cid=j): the connection's own
// cid (already allocated in drainNewConns from a counter that starts at 1
// and grows by one per accepted connection; cids are not reused) echoed back in the reply frame's CID field, exactly what
// client_outer_loop reads to learn which cid to tag every later frame
// with.
func (co *Coordinator) replyNew(cid uint16, cs *connState) {
	if err := tlv.Write(cs.conn, tlv.NewFrame64(tlv.TypeNew, cid, 0)); err != nil {
		co.Logger.Warn("write failed, dropping connection", "cid", cid, "err", err)
		co.dropConnection(cid)
	}
}

// retireRunning marks cs's RUNNING slot (if any) DONE, folds its count
// into done_count, and recomputes Rate from the measured time the
// connection took to process it — outer_loop.cpp's READY handler does
// this before calling get_next for the connection's next block.
func (co *Coordinator) retireRunning(cs *connState, now time.Time) {
	if cs.running < 0 {
		return
	}
	count, elapsed := co.ring.MarkDone(cs.running, now)
	cs.running = -1
	if elapsed > 0 && count > 0 {
		rate := uint64(float64(count) / elapsed.Seconds())
		if rate == 0 {
			rate = 1
		}
		co.Rate = rate
	}
}

// assignBlock hands cs the next work block, pulling it from the ring
// (reusing a DEAD block if one is available) and writing SEED/COUNT/GO to
// the connection synchronously — the same blocking write outer_loop.cpp
// issues from inside its select loop.
func (co *Coordinator) assignBlock(cid uint16, cs *connState) {
	now := time.Now()
	slot, b := co.ring.Next(co.Rate, now)
	co.ring.Assign(slot, cid, now)
	cs.running = slot
	cs.ready = false

	frames := []tlv.Frame{
		tlv.NewFrame64(tlv.TypeSeed, cid, b.Seed),
		tlv.NewFrame64(tlv.TypeCount, cid, b.Count),
		tlv.NewFrame64(tlv.TypeGo, cid, b.Count),
	}
	for _, f := range frames {
		if err := tlv.Write(cs.conn, f); err != nil {
			co.Logger.Warn("write failed, dropping connection", "cid", cid, "err", err)
			co.dropConnection(cid)
			return
		}
	}
}

// dropConnection releases cid's connection and, if it owned a RUNNING
// block, marks that block DEAD so a future Next call can reclaim or split
// it — set_broken_socket's behaviour in outer_loop.cpp.
func (co *Coordinator) dropConnection(cid uint16) {
	cs, ok := co.conns[cid]
	if !ok {
		return
	}
	if cs.running >= 0 {
		co.ring.MarkDead(cs.running)
	}
	cs.conn.Close()
	delete(co.conns, cid)
	co.Logger.Info("connection dropped", "cid", cid)
}

// scanTimeouts marks every RUNNING block past its deadline DEAD, matching
// set_timeout's periodic pass in outer_loop.cpp; the 3-minute ticker in
// Serve substitutes for select()'s idle timeout.
func (co *Coordinator) scanTimeouts() {
	for _, slot := range co.ring.ScanTimeouts(time.Now()) {
		_ = slot // already marked DEAD by ScanTimeouts; the owning connState keeps its running index
	}
	co.Logger.Info("progress", "done_count", co.ring.DoneCount(), "connections", len(co.conns))
}

// Reporter persists an anomaly frame (PSEUDOPRIME, PSEUDOCOMPOSITE or B1),
// both to an operator-facing log and to the lnrc.log data file.
type Reporter interface {
	Report(frameType uint8, n uint64)
}

// tagFor renders the tag of the exact "<tag> 0x<16hex><16hex>" line schema spec.md's §6
// requires for persisted anomaly reports.
func tagFor(frameType uint8) string {
	switch frameType {
	case tlv.TypePseudoprime:
		return "PSEUDOPRIME"
	case tlv.TypePseudocomposite:
		return "PSEUDOCOMPOSITE"
	case tlv.TypeB1:
		return "B1"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", frameType)
	}
}
