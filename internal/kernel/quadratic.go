package kernel

import (
	"lnrc/internal/arith"
	"lnrc/internal/ring"
)

// smallQuadraticPrimes cubre n < 23: el anillo R[n]/(x^2-sigma*a) no tiene
// margen para que las tres ramas de abajo tengan sentido en moduli tan
// pequenos, asi que islnrc2prime en inner_loop.cpp resuelve este rango con
// una tabla en vez de evaluar la formula general.
var smallQuadraticPrimes = map[uint64]bool{
	2: true, 3: true, 5: true, 7: true, 11: true, 13: true, 17: true, 19: true,
}

// IsQuadraticPrime evalua la prueba cuadratica conjeturada: para n impar
// mayor o igual a 23 calcula (x+2)^(n+1) en el anillo R[n]/(x^2-sigma*a)
// elegido segun n mod 8, y compara el resultado con el valor fijo que la
// identidad predice cuando n es primo. El resultado puede diferir de
// IsPrime para n compuesto: esa discrepancia es precisamente lo que el
// buscador de contraejemplos registra.
func IsQuadraticPrime(n uint64) bool {
	if n < 23 {
		return smallQuadraticPrimes[n]
	}
	if n&1 == 0 {
		return false
	}

	switch n % 8 {
	case 3, 7:
		s, t := ring.ExpNeg1A1(n+1, n)
		return s == 0 && t == 5%n
	case 5:
		s, t := ring.ExpNeg1A2(n+1, n)
		return s == 0 && t == 6%n
	default: // n % 8 == 1
		if arith.IsPerfectSquare(n) {
			return false
		}
		a, found, compositeWitness := smallestNonResidue(n)
		if compositeWitness {
			return false
		}
		if !found {
			// No se hallo un no-residuo cuadratico impar en el rango de
			// busqueda: no deberia ocurrir para n impar > 1, y se trata
			// como fallo de la prueba en vez de optimismo.
			return false
		}
		s1, t1 := ring.ExpGeneric(n+1, n, -1, a)
		if s1 != 0 || t1 != (4+a)%n {
			return false
		}
		s2, t2 := ring.ExpGeneric(n+1, n, 1, a)
		return s2 == 0 && t2 == arith.SubMod(4%n, a%n, n)
	}
}

// maxNonResidueSearch bounds the search for an odd prime quadratic
// non-residue of n. Under GRH the least such prime is O((log n)^2); this
// bound comfortably covers every n representable in 64 bits.
const maxNonResidueSearch = 2000

// smallestNonResidue busca el menor primo impar a tal que el simbolo de
// Jacobi (a/n) sea -1. Si en el camino encuentra (a/n) == 0 con 1 < a < n,
// a es un factor no trivial de n y n es compuesto sin necesidad de seguir
// la busqueda.
func smallestNonResidue(n uint64) (a uint64, found bool, compositeWitness bool) {
	for _, p := range smallPrimes[1:] { // arranca en 3, se salta el 2
		if p >= n {
			break
		}
		j := arith.Jacobi(int64(p), int64(n))
		if j == 0 {
			return 0, false, true
		}
		if j == -1 {
			return p, true, false
		}
	}
	for p := smallPrimes[len(smallPrimes)-1] + 2; p < maxNonResidueSearch; p += 2 {
		if !IsPrime(p) {
			continue
		}
		j := arith.Jacobi(int64(p), int64(n))
		if j == 0 {
			return 0, false, true
		}
		if j == -1 {
			return p, true, false
		}
	}
	return 0, false, false
}
