// Package bignum es un boceto, no una implementacion de rendimiento, de la
// reduccion rapida que la variante GMP del proyecto usaria para moduli por
// encima de 64 bits: Barrett generico y las formas especiales
// 2^n - e, 2^n + e (Proth/Montgomery), calcadas de la estructura de
// quadratic_primality_precompute.h pero sobre math/big.Int en vez de mpz_t
// y ensamblador. Ningun otro paquete lo importa: la rama "fuera de rango de
// 61 bits" de cmd/quadratic usa big.Int.ProbablyPrime, y el buscador
// distribuido en si nunca sale de uint64.
package bignum

import "math/big"

// Shape identifica la forma especial (si la hay) del modulo, igual que
// special_case/montg/proth/power2me/power2pe en mod_precompute_t.
type Shape int

const (
	ShapeGeneric Shape = iota
	ShapePower2Minus // m = 2^n - e
	ShapePower2Plus  // m = 2^n + e
	ShapeProth       // m = e * 2^n + 1
)

// Modulus precomputa los coeficientes de Barrett (a = 2^n32 mod m, b =
// 2^n32 div m) para un modulo m, ademas de reconocer si m tiene una de las
// formas especiales que admiten una reduccion mas barata.
type Modulus struct {
	M    *big.Int
	N    uint   // bit length of m
	N2   uint   // n / 2
	N32  uint   // n + n2, Barrett threshold
	A, B *big.Int
	shape Shape
	e     uint64 // small-number part of the special form, if any
}

// NewModulus precomputes the Barrett reduction coefficients for m and
// classifies its shape.
func NewModulus(m *big.Int) *Modulus {
	n := uint(m.BitLen())
	n2 := n / 2
	n32 := n + n2

	pow := new(big.Int).Lsh(big.NewInt(1), n32)
	a := new(big.Int).Mod(pow, m)
	b := new(big.Int).Div(pow, m)

	mod := &Modulus{M: new(big.Int).Set(m), N: n, N2: n2, N32: n32, A: a, B: b}
	mod.shape, mod.e = classify(m, n)
	return mod
}

// classify detects m = 2^n - e (small e) or a Proth number e*2^k+1,
// mirroring the shape flags mod_precompute_t carries so that FastReduce can
// skip Barrett entirely for these cases. Because n is the bit length of m,
// m is always below 2^n and the 2^n + e branch never matches: such moduli
// are classified as Proth or generic instead.
func classify(m *big.Int, n uint) (Shape, uint64) {
	pow := new(big.Int).Lsh(big.NewInt(1), n)

	diff := new(big.Int).Sub(pow, m)
	if diff.Sign() > 0 && diff.IsUint64() && diff.Uint64() < 1<<32 {
		return ShapePower2Minus, diff.Uint64()
	}
	diff = new(big.Int).Sub(m, pow)
	if diff.Sign() > 0 && diff.IsUint64() && diff.Uint64() < 1<<32 {
		return ShapePower2Plus, diff.Uint64()
	}

	one := big.NewInt(1)
	odd := new(big.Int).Sub(m, one)
	k := uint(0)
	for odd.Bit(0) == 0 {
		odd.Rsh(odd, 1)
		k++
	}
	if k > 0 && odd.IsUint64() && odd.Uint64() < 1<<32 {
		return ShapeProth, odd.Uint64()
	}
	return ShapeGeneric, 0
}

// Shape reports the modulus's recognized special form, if any.
func (mod *Modulus) Shape() Shape { return mod.shape }

// FastReduce reduces p modulo mod, dispatching to the cheapest applicable
// strategy: an exact shift-and-subtract for the 2^n-e/2^n+e forms, and
// full Barrett reduction otherwise (classify never selects the 2^n+e form,
// so in practice only 2^n-e takes the shift path). This mirrors mpz_mod_fast_reduce's
// dispatch in the original source, minus the Montgomery-form path, which
// needs a representation change this reference implementation does not
// carry (see DESIGN.md).
func (mod *Modulus) FastReduce(p *big.Int) *big.Int {
	switch mod.shape {
	case ShapePower2Minus:
		return reducePower2Minus(p, mod.N, mod.e, mod.M)
	case ShapePower2Plus:
		return reducePower2Plus(p, mod.N, mod.e, mod.M)
	default:
		return mod.barrettReduce(p)
	}
}

// reducePower2Minus reduces p modulo 2^n - e by repeatedly folding the
// high bits back in multiplied by e, since 2^n === e (mod m).
func reducePower2Minus(p *big.Int, n uint, e uint64, m *big.Int) *big.Int {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), n), big.NewInt(1))
	r := new(big.Int).Set(p)
	eBig := new(big.Int).SetUint64(e)
	for r.BitLen() > int(n) {
		hi := new(big.Int).Rsh(r, n)
		lo := new(big.Int).And(r, mask)
		r = new(big.Int).Add(lo, new(big.Int).Mul(hi, eBig))
	}
	for r.Cmp(m) >= 0 {
		r.Sub(r, m)
	}
	return r
}

// reducePower2Plus reduces p modulo 2^n + e the same way, folding the high
// bits in with alternating sign since 2^n === -e (mod m).
func reducePower2Plus(p *big.Int, n uint, e uint64, m *big.Int) *big.Int {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), n), big.NewInt(1))
	r := new(big.Int).Set(p)
	eBig := new(big.Int).SetUint64(e)
	for r.BitLen() > int(n) {
		hi := new(big.Int).Rsh(r, n)
		lo := new(big.Int).And(r, mask)
		r = new(big.Int).Sub(lo, new(big.Int).Mul(hi, eBig))
		if r.Sign() < 0 {
			r.Add(r, m)
		}
	}
	for r.Cmp(m) >= 0 {
		r.Sub(r, m)
	}
	return r
}

// barrettReduce applies the generic Barrett reduction: q = (p * B) >>
// n32, r = p - q*m, adjusted by at most two subtractions.
func (mod *Modulus) barrettReduce(p *big.Int) *big.Int {
	q := new(big.Int).Rsh(new(big.Int).Mul(p, mod.B), mod.N32)
	r := new(big.Int).Sub(p, new(big.Int).Mul(q, mod.M))
	for r.Sign() < 0 {
		r.Add(r, mod.M)
	}
	for r.Cmp(mod.M) >= 0 {
		r.Sub(r, mod.M)
	}
	return r
}
