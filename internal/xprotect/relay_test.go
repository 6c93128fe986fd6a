package xprotect

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmslab/go2vms/internal/api"
)

// stubCamera accepts connections, swallows the handshake, answers with one
// response line and then sends the after bytes.
func stubCamera(t *testing.T, after []byte) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()

				buf := make([]byte, 4096)
				var got []byte
				for !bytes.Contains(got, []byte("\r\n\r\n")) {
					n, err := conn.Read(buf)
					if err != nil {
						return
					}
					got = append(got, buf[:n]...)
				}

				_, _ = conn.Write([]byte("<methodresponse>ok</methodresponse>\r\n"))

				if after != nil {
					_, _ = conn.Write(after)
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestProbeCamera(t *testing.T) {
	initProbes()

	port := stubCamera(t, nil)

	server := &Server{Host: "127.0.0.1", Token: "TOKEN-1", CameraPort: port}

	probe := probeCamera(context.Background(), "lab", server, "cam-guid-1")
	require.True(t, probe.OK)
	require.Empty(t, probe.Error)
	require.NotEmpty(t, probe.Session)
	require.Equal(t, "lab", probe.Server)

	cached, ok := probes.Peek("lab/cam-guid-1")
	require.True(t, ok)
	require.Equal(t, probe.Session, cached.Session)
}

func TestProbeCameraRefused(t *testing.T) {
	initProbes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	server := &Server{Host: "127.0.0.1", Token: "TOKEN-1", CameraPort: port}

	probe := probeCamera(context.Background(), "lab", server, "cam-guid-1")
	require.False(t, probe.OK)
	require.NotEmpty(t, probe.Error)
}

func TestWSRelay(t *testing.T) {
	initProbes()

	port := stubCamera(t, []byte("PAYLOAD"))

	addServer(t, "lab", &Server{Host: "127.0.0.1", Token: "TOKEN-1", CameraPort: port})

	var mx sync.Mutex
	var frames []any

	tr := &api.Transport{Request: httptest.NewRequest("GET", "/api/ws", nil)}
	tr.OnWrite(func(msg any) error {
		mx.Lock()
		if b, ok := msg.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			frames = append(frames, cp)
		} else {
			frames = append(frames, msg)
		}
		mx.Unlock()
		return nil
	})

	raw, err := json.Marshal(map[string]string{"src": "lab", "camera": "cam-guid-1"})
	require.NoError(t, err)

	require.NoError(t, wsRelay(tr, &api.Message{Type: "xprotect", Raw: raw}))

	// camera bytes arrive as binary frames after the connected message
	require.Eventually(t, func() bool {
		mx.Lock()
		defer mx.Unlock()
		for _, f := range frames {
			if b, ok := f.([]byte); ok && bytes.Contains(b, []byte("PAYLOAD")) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	mx.Lock()
	first, ok := frames[0].(*api.Message)
	mx.Unlock()
	require.True(t, ok)
	require.Equal(t, "connected", first.Type)

	tr.Close()
}

func TestWSRelayUnknown(t *testing.T) {
	tr := &api.Transport{Request: httptest.NewRequest("GET", "/api/ws", nil)}
	tr.OnWrite(func(msg any) error { return nil })

	raw, err := json.Marshal(map[string]string{"src": "nope", "camera": "cam-guid-1"})
	require.NoError(t, err)

	err = wsRelay(tr, &api.Message{Type: "xprotect", Raw: raw})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown server")
}
