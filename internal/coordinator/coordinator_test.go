package coordinator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lnrc/internal/tlv"
)

type memReporter struct {
	got []uint64
}

func (m *memReporter) Report(frameType uint8, n uint64) {
	m.got = append(m.got, n)
}

// TestAssignsBlockOnReady dials the coordinator once, sends READY, and
// checks that it receives SEED/COUNT/GO in that order, exercising the
// owner-goroutine assignment path end to end over a real TCP loopback
// connection.
func TestAssignsBlockOnReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rep := &memReporter{}
	co := New(0, 1, 1, 1000, nil, rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go co.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeNew, 0, 0)))

	newFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	cid := newFrame.CID

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)))

	seedFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	require.Equal(t, uint8(tlv.TypeSeed), seedFrame.Type)

	countFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	require.Equal(t, uint8(tlv.TypeCount), countFrame.Type)

	goFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	require.Equal(t, uint8(tlv.TypeGo), goFrame.Type)
	require.Equal(t, countFrame.Lo64(), goFrame.Lo64())
}

func TestReportDeliversPseudoprimeToReporter(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rep := &memReporter{}
	co := New(0, 1, 1, 1000, nil, rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go co.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeNew, 0, 0)))
	newFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	cid := newFrame.CID

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypePseudoprime, cid, 0x2a)))

	require.Eventually(t, func() bool {
		return len(rep.got) == 1 && rep.got[0] == 0x2a
	}, time.Second, 10*time.Millisecond)
}

// TestB1IsReportedNotTreatedAsBlockDone checks that a B1 frame reaches
// the Reporter like any other anomaly, and does not retire the
// connection's running block (only a later READY does that).
func TestB1IsReportedNotTreatedAsBlockDone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rep := &memReporter{}
	co := New(0, 1, 1, 1000, nil, rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go co.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeNew, 0, 0)))
	newFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	cid := newFrame.CID

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)))
	_, err = tlv.Read(conn) // SEED
	require.NoError(t, err)
	_, err = tlv.Read(conn) // COUNT
	require.NoError(t, err)
	_, err = tlv.Read(conn) // GO
	require.NoError(t, err)

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeB1, cid, 0x99)))

	require.Eventually(t, func() bool {
		return len(rep.got) == 1 && rep.got[0] == 0x99
	}, time.Second, 10*time.Millisecond)

	st, err := co.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), st.DoneCount)
}

// TestReadyRetiresPreviousBlockAndRecomputesRate drives two blocks
// through one connection and checks that the second READY folds the
// first block's count into done_count and changes Rate from its
// bootstrap value.
func TestReadyRetiresPreviousBlockAndRecomputesRate(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rep := &memReporter{}
	co := New(0, 1, 1, 1000, nil, rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go co.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	bootstrap, err := co.Status(ctx)
	require.NoError(t, err)

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeNew, 0, 0)))
	newFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	cid := newFrame.CID

	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)))
	seedFrame, err := tlv.Read(conn)
	require.NoError(t, err)
	_, err = tlv.Read(conn) // COUNT
	require.NoError(t, err)
	_, err = tlv.Read(conn) // GO
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, tlv.Write(conn, tlv.NewFrame64(tlv.TypeReady, cid, 0)))

	secondSeed, err := tlv.Read(conn)
	require.NoError(t, err)
	_, err = tlv.Read(conn) // COUNT
	require.NoError(t, err)
	_, err = tlv.Read(conn) // GO
	require.NoError(t, err)

	require.NotEqual(t, seedFrame.Lo64(), secondSeed.Lo64())

	var st Status
	require.Eventually(t, func() bool {
		st, err = co.Status(ctx)
		return err == nil && st.DoneCount > 0
	}, time.Second, 10*time.Millisecond)
	require.NotEqual(t, bootstrap.Rate, st.Rate)
}
