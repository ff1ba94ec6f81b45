// Package block implementa el buffer circular de bloques de trabajo que
// outer_loop.cpp mantiene entre tail y head: cada bloque describe un tramo
// contiguo de la secuencia LCG asignado (o por asignar) a una conexion.
// Todo el estado de este paquete pertenece a un unico goroutine propietario
// (el coordinador); no hay ningun mutex porque, por diseno, nadie mas lo
// toca (ver Design Note "Global mutable state").
package block

import (
	"time"

	"lnrc/internal/lcg"
)

// Estado de un bloque de trabajo, igual que STATE_UNUSED/PENDING/RUNNING/
// DONE/DEAD en outer_loop.cpp.
const (
	Unused = iota
	Pending
	Running
	Done
	Dead
)

// BlockTime es la duracion objetivo de un bloque de trabajo (10s), y
// Timeout el plazo tras el cual un bloque RUNNING sin respuesta se declara
// DEAD y queda libre para reasignacion.
const (
	BlockTime = 10 * time.Second
	Timeout   = 2 * BlockTime
)

// Block describe un tramo de la secuencia LCG: Count candidatos comenzando
// en Seed.
type Block struct {
	State       int
	Seed        uint64
	Count       uint64
	CID         uint16
	Started     time.Time
	ExpectedEnd time.Time
}

// Ring es el buffer circular [tail, head) de bloques de trabajo. MaxBlock
// es 32 * MAX_CID en el original: suficiente margen para que ninguna
// conexion activa se quede nunca sin bloques pendientes que reclamar.
type Ring struct {
	blocks []Block
	tail   int
	head   int
	seq    *lcg.Generator
	done   uint64
}

// NewRing crea un buffer circular de tamano maxBlock que extrae nuevos
// candidatos de seq.
func NewRing(maxBlock int, seq *lcg.Generator) *Ring {
	return &Ring{blocks: make([]Block, maxBlock), seq: seq}
}

// CountFromRate calcula cuantos candidatos caben en un bloque de BlockTime
// a la tasa dada (candidatos por segundo), como get_count_from_rate: se
// anade un margen fijo de 3 y se fuerza a impar, de modo que el resultado
// es siempre impar y al menos 5.
func CountFromRate(rate uint64) uint64 {
	if rate == 0 {
		rate = 1
	}
	secs := uint64(BlockTime / time.Second)
	count := secs * rate
	return (count + 3) | 1
}

// DoneCount returns the number of fully processed candidates reported so
// far across every retired block.
func (r *Ring) DoneCount() uint64 {
	return r.done
}

func (r *Ring) size() int {
	return len(r.blocks)
}

func (r *Ring) idx(i int) int {
	n := r.size()
	return ((i % n) + n) % n
}

// Next returns a work block to hand to a connection: it first tries to
// reuse (and, if larger than needed, split) a DEAD block already sitting
// in [tail, head), exactly as get_next does in outer_loop.cpp, and only
// pulls fresh candidates from the LCG when no DEAD block is available; a
// fresh block starts at the LCG's current seed and advances it by the
// block's count, so consecutive fresh blocks do not overlap.
func (r *Ring) Next(rate uint64, now time.Time) (slot int, blk Block) {
	count := CountFromRate(rate)
	for i := r.tail; i != r.head; i++ {
		j := r.idx(i)
		b := r.blocks[j]
		if b.State != Dead || b.Count == 0 {
			continue
		}
		if b.Count > count {
			rest := b.Count - count
			r.blocks[j].Count = count
			head := r.idx(r.head)
			r.blocks[head] = Block{State: Dead, Seed: b.Seed + count, Count: rest}
			r.head++
			b.Count = count
		}
		r.blocks[j] = Block{State: Pending, Seed: b.Seed, Count: b.Count}
		return j, r.blocks[j]
	}

	seed := r.seq.Seed()
	r.seq.Skip(count)
	j := r.idx(r.head)
	r.blocks[j] = Block{State: Pending, Seed: seed, Count: count}
	r.head++
	return j, r.blocks[j]
}

// Assign marks the block at slot RUNNING, owned by cid, with a deadline
// Timeout from now.
func (r *Ring) Assign(slot int, cid uint16, now time.Time) {
	r.blocks[slot].State = Running
	r.blocks[slot].CID = cid
	r.blocks[slot].Started = now
	r.blocks[slot].ExpectedEnd = now.Add(Timeout)
}

// MarkDone retires the block at slot, accumulates its candidate count
// into the running total, and returns the count and elapsed time since it
// was assigned — the two numbers outer_loop.cpp's READY handler divides
// to recompute rate before calling get_next for the next block.
func (r *Ring) MarkDone(slot int, now time.Time) (count uint64, elapsed time.Duration) {
	b := r.blocks[slot]
	r.blocks[slot].State = Done
	r.done += b.Count
	r.advanceTail()
	return b.Count, now.Sub(b.Started)
}

// MarkDead marks the block at slot DEAD, making it eligible for reuse or
// splitting by a future Next call — used both when a connection drops a
// RUNNING block and when the timeout scan finds one past its deadline.
func (r *Ring) MarkDead(slot int) {
	r.blocks[slot].State = Dead
}

// advanceTail moves tail past every DONE block at the front of the ring,
// mirroring set_timeout's tail-advance pass in outer_loop.cpp.
func (r *Ring) advanceTail() {
	for r.tail != r.head {
		j := r.idx(r.tail)
		if r.blocks[j].State != Done {
			break
		}
		r.tail++
	}
}

// ScanTimeouts returns the slot indices of every RUNNING block whose
// ExpectedEnd has passed and marks them DEAD. It does not touch the
// connection that owned them; that connection still refers to the slot.
func (r *Ring) ScanTimeouts(now time.Time) []int {
	r.advanceTail()
	var dead []int
	for i := r.tail; i != r.head; i++ {
		j := r.idx(i)
		b := r.blocks[j]
		if b.State == Running && now.After(b.ExpectedEnd) {
			r.MarkDead(j)
			dead = append(dead, j)
		}
	}
	return dead
}
