package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewReqID genera un identificador corto (16 caracteres hex) para
// correlacionar, en el log del coordinador, una petición a /status o
// /metrics con la respuesta X-Request-Id que adminhttp le adjunta.
func NewReqID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
