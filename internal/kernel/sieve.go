package kernel

// smallPrimes lists every prime <= 151, the same bound inner_loop.cpp's
// sieve<T> trial-divides against before ever reaching Miller-Rabin. The
// original encodes each division as a magic-multiply constant; here a
// plain modulo loop does the same job, since Go has no inline-asm hot path
// to protect and the compiler already strength-reduces constant modulos.
var smallPrimes = []uint64{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67,
	71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113, 127, 131, 137, 139,
	149, 151,
}

// trialDivide reports whether n's primality is already decided by trial
// division against smallPrimes: (prime, decided). It returns decided=false
// when n survives every small divisor and is large enough that a bigger
// prime factor remains possible, meaning the caller must fall through to
// Miller-Rabin.
func trialDivide(n uint64) (prime bool, decided bool) {
	for _, p := range smallPrimes {
		if n == p {
			return true, true
		}
		if n%p == 0 {
			return false, true
		}
		if p*p > n {
			return true, true
		}
	}
	return false, false
}
