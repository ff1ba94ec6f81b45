// Package worker implementa el lado cliente del protocolo: se conecta al
// coordinador, recibe bloques de trabajo (una semilla LCG y un recuento de
// candidatos) y compara, candidato a candidato, el resultado de
// internal/kernel.IsPrime contra internal/kernel.IsQuadraticPrime,
// reportando cualquier discrepancia como PSEUDOPRIME o PSEUDOCOMPOSITE.
package worker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"lnrc/internal/kernel"
	"lnrc/internal/lcg"
	"lnrc/internal/tlv"
)

// maxCandidateBits es el limite superior de la secuencia: el numero
// convertido de una semilla LCG no debe superar 61 bits (v>>61 != 0 en el
// original), margen que deja sitio para la aritmetica de 64 bits del
// nucleo sin desbordarse.
const maxCandidateBits = 61

// Worker dials one coordinator connection at a time and runs the
// request/response state machine client_outer_loop describes: NEW, READY,
// then a SEED/COUNT/GO cycle per work block until STOP.
type Worker struct {
	Addr string
	Log  *log.Logger
}

// New builds a Worker that dials addr, logging through logger (or a
// default logger to stderr if nil).
func New(addr string, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{Addr: addr, Log: logger}
}

// Run dials addr in a loop until ctx is cancelled, backing off between
// reconnection attempts with the same back_off%60 / back_off*3/2+1 rule as
// client_thread in client_loop.cpp: each failed or dropped session grows
// back_off, and the wait is back_off modulo 60 seconds, so it wraps around
// instead of staying at 60. A clean STOP ends the session without error and
// Run returns nil without redialing.
func (w *Worker) Run(ctx context.Context) error {
	backoff := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := w.runSession(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.Log.Warn("worker session ended, reconnecting", "err", err, "backoff_s", backoff%60)
		select {
		case <-time.After(time.Duration(backoff%60) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = backoff*3/2 + 1
	}
}

func (w *Worker) runSession(ctx context.Context) error {
	conn, err := net.Dial("tcp", w.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := tlv.Write(conn, tlv.NewFrame64(tlv.TypeNew, 0, 0)); err != nil {
		return err
	}
	newFrame, err := tlv.Read(conn)
	if err != nil {
		return err
	}
	cid := newFrame.CID
	logger := w.Log.With("cid", cid)

	if err := tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)); err != nil {
		return err
	}

	var seed uint64
	var haveSeed bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := tlv.Read(conn)
		if err != nil {
			return err
		}
		switch f.Type {
		case tlv.TypeSeed:
			seed, haveSeed = f.Lo64(), true
		case tlv.TypeCount:
			if !haveSeed {
				return fmt.Errorf("worker: COUNT before SEED")
			}
		case tlv.TypeGo:
			count := f.Lo64()
			if err := w.innerLoop(ctx, conn, cid, seed, count, logger); err != nil {
				return err
			}
			if err := tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)); err != nil {
				return err
			}
			haveSeed = false
		case tlv.TypeStop:
			return nil
		default:
			return fmt.Errorf("worker: unexpected frame type %d", f.Type)
		}
	}
}

// innerLoop walks count candidates starting from seed, comparing IsPrime
// against IsQuadraticPrime for each one and reporting a disagreement as
// PSEUDOPRIME (quadratic test says prime, Miller-Rabin says composite) or
// PSEUDOCOMPOSITE (Miller-Rabin says prime, quadratic test says composite)
// — exactly the two outcomes inner_loop in inner_loop.cpp reports. A
// candidate above the 61-bit bound is an invariant failure and panics.
func (w *Worker) innerLoop(ctx context.Context, conn net.Conn, cid uint16, seed, count uint64, logger *log.Logger) error {
	gen := lcg.New(1, 1, seed)
	for i := uint64(0); i < count; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s := gen.Next()
		n := lcg.ConvertSeedToNumber(s)
		if n>>maxCandidateBits != 0 {
			panic(fmt.Sprintf("worker: candidate %d exceeds %d-bit bound", n, maxCandidateBits))
		}

		mr := kernel.IsPrime(n)
		quad := kernel.IsQuadraticPrime(n)
		if mr == quad {
			continue
		}

		logger.Warn("quadratic test disagrees with Miller-Rabin", "n", n, "miller_rabin", mr, "quadratic", quad)
		typ := uint8(tlv.TypePseudocomposite)
		if quad && !mr {
			typ = tlv.TypePseudoprime
		}
		if err := tlv.Write(conn, tlv.NewFrame64(typ, cid, n)); err != nil {
			return err
		}
	}
	return nil
}
