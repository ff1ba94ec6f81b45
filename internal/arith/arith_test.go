package arith

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMulModAgainstBigInt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.Uint64Range(1, 1<<61).Draw(t, "m")
		u := rapid.Uint64Range(0, m-1).Draw(t, "u")
		v := rapid.Uint64Range(0, m-1).Draw(t, "v")

		got := MulMod(u, v, m)
		want := new(big.Int).Mod(
			new(big.Int).Mul(new(big.Int).SetUint64(u), new(big.Int).SetUint64(v)),
			new(big.Int).SetUint64(m),
		)
		require.Equal(t, want.Uint64(), got)
	})
}

func TestAddSubModRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.Uint64Range(1, 1<<62).Draw(t, "m")
		u := rapid.Uint64Range(0, m-1).Draw(t, "u")
		v := rapid.Uint64Range(0, m-1).Draw(t, "v")

		sum := AddMod(u, v, m)
		back := SubMod(sum, v, m)
		require.Equal(t, u%m, back)
	})
}

func TestModInvIsInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.Uint64Range(3, 1<<40).Filter(func(x uint64) bool { return x&1 == 1 }).Draw(t, "m")
		a := rapid.Uint64Range(1, m-1).Filter(func(x uint64) bool { return Gcd(x, m) == 1 }).Draw(t, "a")

		inv := ModInv(a, m)
		require.Equal(t, uint64(1), MulMod(a, inv, m))
	})
}

func TestModInvReturnsZeroWhenNotCoprime(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.Uint64Range(4, 1<<40).Filter(func(x uint64) bool { return x&1 == 0 }).Draw(t, "m")
		k := rapid.Uint64Range(1, m/2).Draw(t, "k")
		a := (2 * k) % m // shares the factor 2 with even m, so gcd(a,m) != 1

		require.Equal(t, uint64(0), ModInv(a, m))
	})
}

func TestPowModMatchesPow2ModForBaseTwo(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.Uint64Range(1, 1<<62).Draw(t, "m")
		e := rapid.Uint64Range(0, 1<<40).Draw(t, "e")

		require.Equal(t, PowMod(2, e, m), Pow2Mod(e, m))
	})
}

func TestJacobiAndKroneckerAgreeOnOddPositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64Range(1, 1<<20).Filter(func(x int64) bool { return x&1 == 1 }).Draw(t, "n")
		a := rapid.Int64Range(-(1 << 20), 1<<20).Draw(t, "a")

		require.Equal(t, Jacobi(a, n), Kronecker(a, n))
	})
}

func TestKroneckerFixedVectors(t *testing.T) {
	cases := []struct {
		a, b int64
		want int
	}{
		{11, 101, -1},
		{-11, 101, -1},
		{13, 101, 1},
		{-13, 101, 1},
		{-1, 101, 1},
		{0, 101, 0},
		{1, 101, 1},
		{1, 0, 1},
		{2, 0, 0},
		{13, -101, 1},
		{-13, -101, -1},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Kronecker(c.a, c.b), "kronecker(%d,%d)", c.a, c.b)
	}
}

func TestIsPerfectSquareFixedVectors(t *testing.T) {
	assert.True(t, IsPerfectSquare(0))
	assert.True(t, IsPerfectSquare(1))
	assert.True(t, IsPerfectSquare(144))
	assert.True(t, IsPerfectSquare(3037000499*3037000499))
	assert.False(t, IsPerfectSquare(143))
}

func TestIsPerfectSquareAgainstIntSqrt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := rapid.Uint64Range(0, 1<<30).Draw(t, "r")
		require.True(t, IsPerfectSquare(r*r))
		if r > 0 {
			require.False(t, IsPerfectSquare(r*r+1))
		}
	})
}
