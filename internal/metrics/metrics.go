package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmslab/go2vms/internal/api"
	"github.com/vmslab/go2vms/internal/app"
)

func Init() {
	var cfg struct {
		Mod struct {
			Enable bool `yaml:"enable"`
		} `yaml:"metrics"`
	}

	cfg.Mod.Enable = true

	app.LoadConfig(&cfg)

	if !cfg.Mod.Enable {
		return
	}

	log := app.GetLogger("metrics")
	log.Debug().Msg("[metrics] enable prometheus endpoint")

	api.HandleFunc("api/metrics", promhttp.Handler().ServeHTTP)
}

var (
	// ConfigRequests counts configuration retrievals per VMS server.
	ConfigRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xprotect_config_requests_total",
			Help: "Configuration retrievals by server and result",
		},
		[]string{"server", "result"},
	)

	ConfigDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xprotect_config_duration_seconds",
			Help:    "Configuration retrieval duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server"},
	)

	CameraConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xprotect_camera_connects_total",
			Help: "Camera channel connects by server and result",
		},
		[]string{"server", "result"},
	)

	// RelayBytes counts relayed payload bytes, direction is "client" for
	// camera to websocket and "camera" for websocket to camera.
	RelayBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xprotect_relay_bytes_total",
			Help: "Bytes relayed between camera sockets and websocket clients",
		},
		[]string{"direction"},
	)
)
