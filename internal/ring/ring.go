// Package ring implementa la exponenciacion en el anillo R[x]/(n, x^2 - sigma*a),
// el nucleo algebraico de la prueba cuadratica conjeturada: eleva el elemento
// (x+2) a la potencia n+1 y devuelve sus dos coordenadas (s, t) tales que el
// resultado es s*x + t.
//
// El original (inner_loop.cpp, exponentiate2) especializa en tiempo de
// compilacion los pares (sigma, a) mas frecuentes mediante
// __builtin_constant_p; aqui se exponen como tres funciones explicitas que
// el nucleo de primalidad elige en tiempo de ejecucion segun n mod 8 (ver
// Design Note "Compile-time specialization").
package ring

import "lnrc/internal/arith"

// square eleva (s*x+t) al cuadrado dentro del mismo anillo:
//
//	(s*x+t)^2 = s^2*x^2 + 2*s*t*x + t^2 = s^2*sigma*a + t^2 + 2*s*t*x
func square(s, t, n, a uint64, sigma int) (ns, nt uint64) {
	ns = arith.AddMod(arith.MulMod(s, t, n), arith.MulMod(s, t, n), n)
	s2a := arith.MulMod(arith.SquareMod(s, n), a, n)
	t2 := arith.SquareMod(t, n)
	if sigma < 0 {
		nt = arith.SubMod(t2, s2a, n)
	} else {
		nt = arith.AddMod(t2, s2a, n)
	}
	return ns, nt
}

// step2 multiplica dos elementos generales (s1*x+t1)*(s2*x+t2) dentro del
// anillo; expStep lo usa para acumular el resultado cuando el bit del
// exponente esta activo.
func step2(s1, t1, s2, t2, n, a uint64, sigma int) (uint64, uint64) {
	ns := arith.AddMod(arith.MulMod(s1, t2, n), arith.MulMod(s2, t1, n), n)
	ss := arith.MulMod(arith.MulMod(s1, s2, n), a, n)
	tt := arith.MulMod(t1, t2, n)
	if sigma < 0 {
		return ns, arith.SubMod(tt, ss, n)
	}
	return ns, arith.AddMod(tt, ss, n)
}

// ExpNeg1A1 calcula (x+2)^e en R[n]/(x^2+1) (sigma=-1, a=1), el caso usado
// por el kernel cuando n mod 8 es 3 o 7.
func ExpNeg1A1(e, n uint64) (s, t uint64) {
	s, t = uint64(1)%n, arith.AddMod(1, 1, n)
	return expStep(s, t, e, n, 1, -1)
}

// ExpNeg1A2 calcula (x+2)^e en R[n]/(x^2+2) (sigma=-1, a=2), el caso usado
// cuando n mod 8 es 5.
func ExpNeg1A2(e, n uint64) (s, t uint64) {
	s, t = uint64(1)%n, arith.AddMod(1, 1, n)
	return expStep(s, t, e, n, 2, -1)
}

// ExpGeneric calcula (x+2)^e en R[n]/(x^2 - sigma*a) para sigma y a
// arbitrarios, el caso usado cuando n mod 8 es 1 y el kernel ha tenido que
// buscar un no-residuo cuadratico a.
func ExpGeneric(e, n uint64, sigma int, a uint64) (s, t uint64) {
	s, t = uint64(1)%n, arith.AddMod(1, 1, n)
	return expStep(s, t, e, n, a, sigma)
}

// expStep eleva el elemento inicial (s*x+t) = (x+2) a la potencia e por
// cuadrado-y-multiplica generico dentro del anillo (n, x^2 - sigma*a).
func expStep(s, t, e, n, a uint64, sigma int) (uint64, uint64) {
	if e == 0 {
		return 0, 1 % n
	}
	baseS, baseT := s, t
	rs, rt := uint64(0), uint64(1)%n
	first := true
	for e > 0 {
		if e&1 == 1 {
			if first {
				rs, rt = baseS, baseT
				first = false
			} else {
				rs, rt = step2(rs, rt, baseS, baseT, n, a, sigma)
			}
		}
		e >>= 1
		if e > 0 {
			baseS, baseT = square(baseS, baseT, n, a, sigma)
		}
	}
	return rs, rt
}
