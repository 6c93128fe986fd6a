package xprotect

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectRequest(t *testing.T) {
	s := string(connectRequest(0, "abc-123", "tok"))

	require.Contains(t, s, "<requestid>0</requestid>")
	require.Contains(t, s, "<methodname>connect</methodname>")
	require.Contains(t, s, "<cameraid>abc-123</cameraid>")
	require.Contains(t, s, "<connectparam>id=abc-123&connectiontoken=tok</connectparam>")
	require.True(t, strings.HasSuffix(s, "\r\n\r\n"))
}

func TestValidParams(t *testing.T) {
	tests := []struct {
		s  string
		ok bool
	}{
		{s: "", ok: false},
		{s: " ", ok: false},
		{s: "\t \r\n", ok: false},
		{s: "abc-123", ok: true},
		{s: " x ", ok: true},
	}

	for _, test := range tests {
		require.Equal(t, test.ok, validGUID(test.s), "guid %q", test.s)
		require.Equal(t, test.ok, validToken(test.s), "token %q", test.s)
	}
}

// cameraServer runs handler for every accepted conn and counts accepts.
func cameraServer(t *testing.T, handler func(net.Conn)) (port int, accepted *int32) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted = new(int32)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(accepted, 1)
			go handler(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, accepted
}

func TestDialerConnect(t *testing.T) {
	got := make(chan []byte, 1)

	port, _ := cameraServer(t, func(conn net.Conn) {
		defer conn.Close()

		var req []byte
		buf := make([]byte, 4096)
		for !bytes.HasSuffix(req, []byte("\r\n\r\n")) {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			req = append(req, buf[:n]...)
		}
		got <- req

		_, _ = conn.Write([]byte("<methodresponse>ok</methodresponse>\r\nEXTRA"))
		_, _ = conn.Read(buf) // hold until the client side closes
	})

	d := &Dialer{Hostname: "127.0.0.1", Port: port, GUID: "abc-123", Token: "tok"}

	conn, err := d.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, connectRequest(0, "abc-123", "tok"), <-got)

	// only the response line was consumed, the rest stays on the wire
	extra := make([]byte, 5)
	_, err = io.ReadFull(conn, extra)
	require.NoError(t, err)
	require.Equal(t, "EXTRA", string(extra))
}

func TestDialerConnectInvalid(t *testing.T) {
	port, accepted := cameraServer(t, func(conn net.Conn) {
		_, _ = io.Copy(io.Discard, conn)
		_ = conn.Close()
	})

	d := &Dialer{Hostname: "127.0.0.1", Port: port, GUID: "   ", Token: "tok"}
	conn, err := d.Connect(context.Background())
	require.ErrorIs(t, err, ErrInvalidGUID)
	require.Nil(t, conn)

	d = &Dialer{Hostname: "127.0.0.1", Port: port, GUID: "abc-123", Token: ""}
	conn, err = d.Connect(context.Background())
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Nil(t, conn)

	// the checks run after the dial, both sockets were accepted and closed
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(accepted) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDialerNoRetry(t *testing.T) {
	port, accepted := cameraServer(t, func(conn net.Conn) {
		_ = conn.Close() // refuse the handshake
	})

	d := &Dialer{Hostname: "127.0.0.1", Port: port, GUID: "abc-123", Token: "tok", Timeout: time.Second}

	_, err := d.Connect(context.Background())
	require.Error(t, err)

	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(accepted))
}

func TestRequestConnect(t *testing.T) {
	// closed port, the dial fails fast
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	d := &Dialer{Hostname: "127.0.0.1", Port: port, GUID: "abc-123", Token: "tok", Timeout: 500 * time.Millisecond}

	ch := d.RequestConnect(context.Background())

	res, ok := <-ch
	require.True(t, ok)
	require.Error(t, res.Err)
	require.Nil(t, res.Conn)
	require.Equal(t, "abc-123", res.GUID)

	// exactly one delivery
	_, ok = <-ch
	require.False(t, ok)
}
