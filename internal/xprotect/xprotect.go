package xprotect

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmslab/go2vms/internal/api"
	"github.com/vmslab/go2vms/internal/app"
	"github.com/vmslab/go2vms/internal/metrics"
	"github.com/vmslab/go2vms/pkg/xprotect"
)

func Init() {
	var cfg struct {
		Mod map[string]*Server `yaml:"xprotect"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("xprotect")

	for name, server := range cfg.Mod {
		if server == nil {
			continue
		}
		servers[name] = server
		log.Info().Str("name", name).Str("host", server.Host).Msg("[xprotect] server")
	}

	initProbes()

	api.HandleFunc("api/xprotect", apiServers)
	api.HandleFunc("api/xprotect/cameras", apiCameras)
	api.HandleFunc("api/xprotect/probe", apiProbe)
	api.HandleFunc("api/xprotect/status", apiStatus)

	api.HandleWS("xprotect", wsRelay)
}

var (
	log     zerolog.Logger
	mu      sync.RWMutex
	servers = map[string]*Server{}
)

// Server is one configured VMS management server. Secrets never leave
// the process via JSON.
type Server struct {
	Host       string `yaml:"host" json:"host"`
	Username   string `yaml:"username,omitempty" json:"-"`
	Password   string `yaml:"password,omitempty" json:"-"`
	Token      string `yaml:"token,omitempty" json:"-"`
	TrustFile  string `yaml:"trust_file,omitempty" json:"trust_file,omitempty"`
	TrustPass  string `yaml:"trust_pass,omitempty" json:"-"`
	Insecure   bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	CameraPort int    `yaml:"camera_port,omitempty" json:"camera_port,omitempty"`
	Timeout    string `yaml:"timeout,omitempty" json:"-"`
}

func (s *Server) client() *xprotect.Client {
	timeout, _ := time.ParseDuration(s.Timeout)
	return &xprotect.Client{
		Hostname: s.Host,
		Username: s.Username,
		Password: s.Password,
		Token:    s.Token,
		Timeout:  timeout,
	}
}

func (s *Server) dialer(guid string) *xprotect.Dialer {
	host := s.Host
	// the camera channel has its own port
	if i := strings.IndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return &xprotect.Dialer{
		Hostname: host,
		Port:     s.CameraPort,
		GUID:     guid,
		Token:    s.Token,
	}
}

// getConfiguration runs the retrieval with the trust source the server
// config picks: a pinned trust file or the explicit insecure mode.
func (s *Server) getConfiguration(ctx context.Context) (*xprotect.Configuration, error) {
	client := s.client()

	if s.Insecure {
		return client.GetConfigurationInsecure(ctx)
	}

	if s.TrustFile == "" {
		return nil, errors.New("no trust_file and insecure not set")
	}

	f, err := os.Open(s.TrustFile)
	if err != nil {
		return nil, err
	}

	return client.GetConfiguration(ctx, f, s.TrustPass)
}

func getServer(name string) *Server {
	mu.RLock()
	defer mu.RUnlock()
	return servers[name]
}

func apiServers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		mu.RLock()
		defer mu.RUnlock()
		api.ResponseJSON(w, servers)

	case "POST", "PUT":
		query := r.URL.Query()
		name := query.Get("name")
		host := query.Get("host")
		if name == "" || host == "" {
			http.Error(w, "name and host required", http.StatusBadRequest)
			return
		}

		port, _ := strconv.Atoi(query.Get("camera_port"))

		server := &Server{
			Host:       host,
			Username:   query.Get("username"),
			Password:   query.Get("password"),
			Token:      query.Get("token"),
			TrustFile:  query.Get("trust_file"),
			TrustPass:  query.Get("trust_pass"),
			Insecure:   query.Get("insecure") == "true",
			CameraPort: port,
			Timeout:    query.Get("timeout"),
		}

		mu.Lock()
		servers[name] = server
		mu.Unlock()

		if err := app.PatchConfig([]string{"xprotect", name}, server); err != nil {
			log.Warn().Err(err).Msg("[xprotect] save config")
		}

		api.ResponseJSON(w, server)

	case "DELETE":
		name := r.URL.Query().Get("name")

		mu.Lock()
		delete(servers, name)
		mu.Unlock()

		if err := app.PatchConfig([]string{"xprotect", name}, nil); err != nil {
			log.Warn().Err(err).Msg("[xprotect] save config")
		}

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

func apiCameras(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")

	server := getServer(src)
	if server == nil {
		http.Error(w, "server not found", http.StatusNotFound)
		return
	}

	start := time.Now()

	conf, err := server.getConfiguration(r.Context())

	metrics.ConfigDuration.WithLabelValues(src).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ConfigRequests.WithLabelValues(src, "error").Inc()
		api.Error(w, err)
		return
	}

	metrics.ConfigRequests.WithLabelValues(src, "ok").Inc()

	log.Debug().Str("src", src).Int("cameras", len(conf.Cameras)).Msg("[xprotect] get configuration")

	api.ResponseJSON(w, conf.Cameras)
}
