package arith

import "math"

// squareResidueMod64 marks which residues mod 64 a perfect square can take;
// any x with x&63 not in this set cannot be a square. The same rejection
// trick inner_loop.cpp applies (there against a wider set of small moduli)
// before ever taking a square root.
var squareResidueMod64 = func() [64]bool {
	var t [64]bool
	for i := 0; i < 64; i++ {
		t[(i*i)%64] = true
	}
	return t
}()

// IsPerfectSquare reports whether n is a perfect square. A cheap residue
// test mod 64 rejects most non-squares before the floating-point
// approximation and integer correction run.
func IsPerfectSquare(n uint64) bool {
	if !squareResidueMod64[n&63] {
		return false
	}
	if n == 0 {
		return true
	}
	r := uint64(math.Sqrt(float64(n)))
	for r > 0 && r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r*r == n
}

// IsPerfectCube reports whether n is a perfect cube.
func IsPerfectCube(n uint64) bool {
	if n == 0 {
		return true
	}
	r := uint64(math.Cbrt(float64(n)))
	for r > 0 && r*r*r > n {
		r--
	}
	for (r+1)*(r+1)*(r+1) <= n {
		r++
	}
	return r*r*r == n
}

// IsPerfectFifthPower reports whether n is a perfect fifth power, the last
// of the small perfect-power checks (spec.md's sursolid rejection). Only
// IsPerfectPower calls it; the quadratic kernel itself checks squares only.
func IsPerfectFifthPower(n uint64) bool {
	if n == 0 {
		return true
	}
	r := uint64(math.Pow(float64(n), 0.2))
	pow5 := func(x uint64) uint64 { return x * x * x * x * x }
	for r > 0 && pow5(r) > n {
		r--
	}
	for pow5(r+1) <= n {
		r++
	}
	return pow5(r) == n
}

// IsPerfectPower reports whether n is a perfect square, cube, or fifth
// power. The quadratic kernel does not call it: before searching for a
// quadratic non-residue a it rejects perfect squares only, through
// IsPerfectSquare.
func IsPerfectPower(n uint64) bool {
	return IsPerfectSquare(n) || IsPerfectCube(n) || IsPerfectFifthPower(n)
}
