package xprotect

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vmslab/go2vms/internal/api"
	"github.com/vmslab/go2vms/internal/metrics"
)

// Probe is the outcome of one camera channel handshake.
type Probe struct {
	Session string    `json:"session"`
	Server  string    `json:"server"`
	GUID    string    `json:"guid"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

var probes *lru.Cache[string, Probe]

func initProbes() {
	probes, _ = lru.New[string, Probe](128)
}

// probeCamera dials the camera channel, runs the handshake and drops
// the connection. Only the outcome is kept.
func probeCamera(ctx context.Context, src string, server *Server, guid string) Probe {
	probe := Probe{
		Session: uuid.NewString(),
		Server:  src,
		GUID:    guid,
		Time:    time.Now(),
	}

	conn, err := server.dialer(guid).Connect(ctx)
	if err != nil {
		probe.Error = err.Error()
		metrics.CameraConnects.WithLabelValues(src, "error").Inc()
	} else {
		probe.OK = true
		_ = conn.Close()
		metrics.CameraConnects.WithLabelValues(src, "ok").Inc()
	}

	probes.Add(src+"/"+guid, probe)

	log.Debug().Str("src", src).Str("camera", guid).Bool("ok", probe.OK).Msg("[xprotect] probe")

	return probe
}

func apiProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	src := query.Get("src")
	guid := query.Get("camera")

	server := getServer(src)
	if server == nil {
		http.Error(w, "server not found", http.StatusNotFound)
		return
	}

	probe := probeCamera(r.Context(), src, server, guid)

	api.ResponseJSON(w, probe)
}

// apiStatus dumps recent probe outcomes, oldest first.
func apiStatus(w http.ResponseWriter, r *http.Request) {
	items := make([]Probe, 0, probes.Len())
	for _, key := range probes.Keys() {
		if probe, ok := probes.Peek(key); ok {
			items = append(items, probe)
		}
	}

	api.ResponsePrettyJSON(w, items)
}
