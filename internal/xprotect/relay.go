package xprotect

import (
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/vmslab/go2vms/internal/api"
	"github.com/vmslab/go2vms/internal/metrics"
)

// wsRelay bridges an established camera socket and a websocket client.
// Camera bytes go out as binary frames, client binary frames go to the
// camera. The relay owns the socket and closes it with the websocket.
func wsRelay(tr *api.Transport, msg *api.Message) error {
	var req struct {
		Src    string `json:"src"`
		Camera string `json:"camera"`
	}
	if err := msg.Unmarshal(&req); err != nil {
		return err
	}

	server := getServer(req.Src)
	if server == nil {
		return errors.New("unknown server: " + req.Src)
	}

	conn, err := server.dialer(req.Camera).Connect(tr.Request.Context())
	if err != nil {
		metrics.CameraConnects.WithLabelValues(req.Src, "error").Inc()
		return err
	}

	metrics.CameraConnects.WithLabelValues(req.Src, "ok").Inc()

	session := uuid.NewString()

	log.Debug().
		Str("session", session).Str("src", req.Src).Str("camera", req.Camera).
		Msg("[xprotect] relay start")

	tr.OnBinary(func(b []byte) {
		if _, err := conn.Write(b); err == nil {
			metrics.RelayBytes.WithLabelValues("camera").Add(float64(len(b)))
		}
	})

	tr.OnClose(func() {
		_ = conn.Close()
	})

	tr.Write(&api.Message{Type: "connected", Value: req.Camera})

	go func() {
		n, err := io.Copy(tr.Writer(), conn)

		metrics.RelayBytes.WithLabelValues("client").Add(float64(n))

		log.Debug().
			Err(err).Str("session", session).Int64("bytes", n).
			Msg("[xprotect] relay stop")

		tr.Write(&api.Message{Type: "disconnected", Value: req.Camera})
	}()

	return nil
}
