package adminhttp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lnrc/internal/coordinator"
)

type fakeSource struct{ st coordinator.Status }

func (f fakeSource) Status(ctx context.Context) (coordinator.Status, error) { return f.st, nil }

func startServer(t *testing.T, src Source) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(ln.Addr().String(), src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Serve(ctx, ln)
	return ln.Addr()
}

func get(t *testing.T, addr net.Addr, path string) (status string, body string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET " + path + " HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)

	var b strings.Builder
	inBody := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			break
		}
		if line == "\r\n" {
			inBody = true
			continue
		}
		if inBody {
			b.WriteString(line)
		}
	}
	return strings.TrimSpace(statusLine), b.String()
}

func TestStatusReportsCoordinatorSnapshot(t *testing.T) {
	src := fakeSource{st: coordinator.Status{Connections: 3, DoneCount: 42, NextCID: 4, Rate: 1000}}
	addr := startServer(t, src)

	status, body := get(t, addr, "/status")
	require.Contains(t, status, "200")
	require.Contains(t, body, `"done_count":42`)
	require.Contains(t, body, `"connections":3`)
}

func TestMetricsRendersPlainGauges(t *testing.T) {
	src := fakeSource{st: coordinator.Status{Connections: 1, DoneCount: 7, NextCID: 2, Rate: 500}}
	addr := startServer(t, src)

	status, body := get(t, addr, "/metrics")
	require.Contains(t, status, "200")
	require.Contains(t, body, "lnrc_done_count 7")
}

func TestMetricsFormatJSONMatchesStatus(t *testing.T) {
	src := fakeSource{st: coordinator.Status{Connections: 2, DoneCount: 9, NextCID: 3, Rate: 1500}}
	addr := startServer(t, src)

	status, body := get(t, addr, "/metrics?format=json")
	require.Contains(t, status, "200")
	require.Contains(t, body, `"done_count":9`)
	require.Contains(t, body, `"connections":2`)
	require.NotContains(t, body, "lnrc_done_count")
}

func TestUnknownRouteIs404(t *testing.T) {
	src := fakeSource{}
	addr := startServer(t, src)

	status, _ := get(t, addr, "/nope")
	require.Contains(t, status, "404")
}
