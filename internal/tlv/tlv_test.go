package tlv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWriteReadRoundTrip64(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := uint8(rapid.IntRange(0, 255).Draw(t, "type"))
		cid := uint16(rapid.IntRange(0, 65535).Draw(t, "cid"))
		value := rapid.Uint64().Draw(t, "value")

		var buf bytes.Buffer
		require.NoError(t, Write(&buf, NewFrame64(typ, cid, value)))

		got, err := Read(&buf)
		require.NoError(t, err)
		require.Equal(t, typ, got.Type)
		require.Equal(t, cid, got.CID)
		require.Equal(t, value, got.Lo64())
	})
}

func TestWriteUsesMinimalLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewFrame64(TypeSeed, 1, 0x42)))
	encoded := buf.Bytes()
	require.Len(t, encoded, 5+1)
	require.Equal(t, byte(0x42), encoded[5])
}

func TestReadRejectsShortStream(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}
