// Package lcg implementa el generador congruencial lineal que enumera los
// candidatos a contraejemplo: x_{n+1} = (A*x_n + C) mod M con M = 2^60-1.
// Con A=1, C=1 el generador es un contador secuencial puro (el modo de
// referencia del proyecto); con A>1 admite saltar a la posicion n-esima en
// O(log n) mediante exponenciacion modular, sin tener que generar los n-1
// valores intermedios.
package lcg

import (
	"math/bits"

	"lnrc/internal/arith"
)

// M es el modulo del generador: 2^60 - 1.
const M = (uint64(1) << 60) - 1

// Generator mantiene el estado de una secuencia LCG independiente; cada
// hilo trabajador posee su propia copia (ver la invariante de propiedad de
// internal/worker).
type Generator struct {
	a, c, seed uint64
}

// New crea un generador con los parametros (a, c) y la semilla inicial
// dados, todos reducidos modulo M.
func New(a, c, seed uint64) *Generator {
	return &Generator{a: a % M, c: c % M, seed: seed % M}
}

// Sequential reports whether this generator is the pure-counter reference
// mode (A=1, C=1), the same check Lcg::sequential() makes in lcg.h.
func (g *Generator) Sequential() bool {
	return g.a == 1 && g.c == 1
}

// Seed returns the generator's current state.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Next advances the generator by one step and returns the new state.
func (g *Generator) Next() uint64 {
	g.seed = g.step(g.seed)
	return g.seed
}

func (g *Generator) step(x uint64) uint64 {
	return arith.AddMod(arith.MulMod(g.a, x, M), g.c, M)
}

// GetSeed returns the state n steps ahead of the generator's current seed,
// matching Lcg::get_seed in lcg.h: n==0 returns the current seed, n==1
// advances exactly one step through step, and n>1 uses a closed-form stride
// when A == 1, or otherwise seeks in O(log n) by binary doubling of the pair
// (A^k, 1+A+...+A^(k-1)), which needs no inverse of A-1 modulo M.
func (g *Generator) GetSeed(n uint64) uint64 {
	switch {
	case n == 0:
		return g.seed
	case n == 1:
		return g.step(g.seed)
	case g.a == 1:
		return arith.AddMod(g.seed, arith.MulMod(n%M, g.c, M), M)
	default:
		// x_n = x_0 * A^n + C * (1 + A + ... + A^(n-1))   (mod M)
		an, geom := uint64(1), uint64(0)
		for i := bits.Len64(n) - 1; i >= 0; i-- {
			geom = arith.AddMod(geom, arith.MulMod(geom, an, M), M)
			an = arith.MulMod(an, an, M)
			if n>>uint(i)&1 == 1 {
				geom = arith.AddMod(arith.MulMod(geom, g.a, M), 1, M)
				an = arith.MulMod(an, g.a, M)
			}
		}
		return arith.AddMod(arith.MulMod(g.seed, an, M), arith.MulMod(g.c, geom, M), M)
	}
}

// Skip advances the generator's state by n steps in place and returns the
// new seed, using the same O(log n) seek as GetSeed rather than n calls to
// Next.
func (g *Generator) Skip(n uint64) uint64 {
	g.seed = g.GetSeed(n)
	return g.seed
}

// ConvertSeedToNumber maps an LCG state to the odd candidate it encodes,
// convert_seed_to_number in lcg.h: v -> (v<<1)|1.
func ConvertSeedToNumber(v uint64) uint64 {
	return (v << 1) | 1
}

// ConvertNumberToSeed is the inverse of ConvertSeedToNumber.
func ConvertNumberToSeed(v uint64) uint64 {
	return v >> 1
}
