// Package kernel implementa las dos pruebas de primalidad que el buscador
// de contraejemplos compara sobre cada candidato: IsPrime, un Miller-Rabin
// determinista por rangos, e IsQuadraticPrime, la prueba cuadratica
// conjeturada (ver internal/ring). Cuando ambas discrepan para algun n, ese
// n es el contraejemplo que el sistema busca.
package kernel

import "lnrc/internal/arith"

// witnessSets reproduce, en orden, los limites y bases deterministas que
// inner_loop.cpp's isprime<T,TT> usa para decidir Miller-Rabin sin error
// para todo n de 64 bits (Sinclair/Jaeschke), evitando cualquier base
// aleatoria.
var witnessSets = []struct {
	limit uint64
	bases []uint64
}{
	{2047, []uint64{2}},
	{1373653, []uint64{2, 3}},
	{9080191, []uint64{31, 73}},
	{25326001, []uint64{2, 3, 5}},
	{3215031751, []uint64{2, 3, 5, 7}},
	{4759123141, []uint64{2, 7, 61}},
	{1122004669633, []uint64{2, 13, 23, 1662803}},
	{2152302898747, []uint64{2, 3, 5, 7, 11}},
	{3474749660383, []uint64{2, 3, 5, 7, 11, 13}},
	{341550071728321, []uint64{2, 3, 5, 7, 11, 13, 17}},
	{3825123056546413051, []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23}},
}

var allBases = []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

// IsPrime decide la primalidad de n con un Miller-Rabin determinista: una
// division de prueba rapida contra los primos pequenos y, si n la supera,
// el conjunto de bases mas corto que sigue siendo determinista para el
// rango de n.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if prime, decided := trialDivide(n); decided {
		return prime
	}
	bases := allBases
	for _, ws := range witnessSets {
		if n < ws.limit {
			bases = ws.bases
			break
		}
	}
	return millerRabin(n, bases)
}

func millerRabin(n uint64, bases []uint64) bool {
	d := n - 1
	r := 0
	for d&1 == 0 {
		d >>= 1
		r++
	}
	for _, a := range bases {
		if a%n == 0 {
			continue
		}
		if isWitness(a, d, n, r) {
			return false
		}
	}
	return true
}

// isWitness reports whether base a proves n composite under the
// Miller-Rabin test with n-1 = d * 2^r.
func isWitness(a, d, n uint64, r int) bool {
	x := arith.PowMod(a, d, n)
	if x == 1 || x == n-1 {
		return false
	}
	for i := 1; i < r; i++ {
		x = arith.SquareMod(x, n)
		if x == n-1 {
			return false
		}
	}
	return true
}
