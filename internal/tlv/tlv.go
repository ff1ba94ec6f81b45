// Package tlv implementa el codec type-length-value del protocolo de
// cable entre el coordinador, los trabajadores y el proxy: un encabezado
// fijo de 5 bytes (tipo, cid en 2 bytes little-endian, longitud en 2 bytes
// little-endian) seguido de 1 a 16 bytes de valor sin signo en
// little-endian y de longitud minima, tal como tlv.cpp/tlv.h lo definen.
package tlv

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tipos de frame, tal como los define tlv.h.
const (
	TypeSeed            = 1
	TypeCount           = 2
	TypeStop            = 3
	TypeGo              = 4
	TypePseudocomposite = 10
	TypePseudoprime     = 11
	TypeReady           = 12
	TypeNew             = 13
	TypeB1              = 20
)

// MaxValueLen es el maximo de bytes que puede ocupar el campo value (16,
// suficiente para un uint128).
const MaxValueLen = 16

// Frame es un mensaje decodificado del protocolo.
type Frame struct {
	Type  uint8
	CID   uint16
	Value [2]uint64 // [0]=lo, [1]=hi; value = hi*2^64 + lo
}

// NewFrame64 construye un Frame cuyo valor cabe en 64 bits, valido para
// todos los tipos: tambien los candidatos PSEUDOPRIME/PSEUDOCOMPOSITE
// transportan un entero de 64 bits en la mitad baja del value de 128.
func NewFrame64(typ uint8, cid uint16, value uint64) Frame {
	return Frame{Type: typ, CID: cid, Value: [2]uint64{value, 0}}
}

// Lo64 returns the low 64 bits of the frame's value, the common case for
// every frame type this protocol actually carries end to end.
func (f Frame) Lo64() uint64 {
	return f.Value[0]
}

// Read decodifica un frame de r: primero el encabezado de 5 bytes, luego
// exactamente l bytes de valor, igual que tlv_read en tlv.cpp. A diferencia
// del original, que usa read() crudo y reintenta manualmente, aqui basta
// con io.ReadFull porque ya absorbe los reintentos de una lectura parcial.
func Read(r io.Reader) (Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	typ := hdr[0]
	cid := binary.LittleEndian.Uint16(hdr[1:3])
	l := binary.LittleEndian.Uint16(hdr[3:5])
	if l < 1 || l > MaxValueLen {
		return Frame{}, fmt.Errorf("tlv: invalid value length %d", l)
	}

	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}

	var lo, hi uint64
	for i := int(l) - 1; i >= 0; i-- {
		b := uint64(buf[i])
		if i < 8 {
			lo = lo<<8 | b
		} else {
			hi = hi<<8 | b
		}
	}
	return Frame{Type: typ, CID: cid, Value: [2]uint64{lo, hi}}, nil
}

// Write codifica f en w con la longitud minima que representa su valor,
// igual que tlv_write en tlv.cpp: crece l de 1 en 1 hasta que el valor cabe
// en l bytes sin signo.
func Write(w io.Writer, f Frame) error {
	lo, hi := f.Value[0], f.Value[1]
	l := minimalLength(lo, hi)

	hdr := [5]byte{f.Type}
	binary.LittleEndian.PutUint16(hdr[1:3], f.CID)
	binary.LittleEndian.PutUint16(hdr[3:5], uint16(l))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	buf := make([]byte, l)
	for i := 0; i < l; i++ {
		if i < 8 {
			buf[i] = byte(lo)
			lo >>= 8
		} else {
			buf[i] = byte(hi)
			hi >>= 8
		}
	}
	_, err := w.Write(buf)
	return err
}

func minimalLength(lo, hi uint64) int {
	for l := 1; l < MaxValueLen; l++ {
		if l <= 8 {
			if hi == 0 && fitsInBytes(lo, l) {
				return l
			}
		} else if fitsInBytes(hi, l-8) {
			return l
		}
	}
	return MaxValueLen
}

func fitsInBytes(v uint64, l int) bool {
	if l >= 8 {
		return true
	}
	return v>>(uint(l)*8) == 0
}
