package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var Version = "1.0.0"
var UserAgent = "go2vms/" + Version

var (
	// ConfigPath is the first config file from the command line. Runtime
	// changes are written back to it.
	ConfigPath string

	// Daemon and PidPath are consumed by main on OS-es with fork support.
	Daemon  bool
	PidPath string

	Info = map[string]any{
		"version": Version,
	}
)

func Init() {
	var confs Config
	var version bool

	flag.Var(&confs, "config", "go2vms config (path to file or raw text), support multiple")
	if runtime.GOOS != "windows" {
		flag.BoolVar(&Daemon, "daemon", false, "Run program in background")
		flag.StringVar(&PidPath, "pidfile", "go2vms.pid", "Daemon PID file path")
	}
	flag.BoolVar(&version, "version", false, "Print the version of the application and exit")

	flag.Parse()

	if version {
		fmt.Printf("go2vms version %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	if confs == nil {
		confs = []string{"go2vms.yaml"}
	}

	for _, conf := range confs {
		if len(conf) == 0 {
			continue
		}
		if conf[0] != '{' {
			// config as file path
			if ConfigPath == "" {
				ConfigPath = conf
			}

			data, _ := os.ReadFile(conf)
			if data == nil {
				continue
			}

			data = []byte(replaceEnvVars(string(data)))
			configs = append(configs, data)
		} else {
			// config as raw YAML or JSON
			configs = append(configs, []byte(conf))
		}
	}

	if ConfigPath != "" {
		if !filepath.IsAbs(ConfigPath) {
			if cwd, err := os.Getwd(); err == nil {
				ConfigPath = filepath.Join(cwd, ConfigPath)
			}
		}
		Info["config_path"] = ConfigPath
	}

	initLogger()

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	log.Logger = Logger
	log.Info().Str("version", Version).Str("platform", platform).Msg("go2vms")

	if ConfigPath != "" {
		log.Debug().Str("path", ConfigPath).Msg("[app] config")
	}
}

// LoadConfig unmarshals every config layer into v. Later layers win.
func LoadConfig(v any) {
	for _, data := range configs {
		if err := yaml.Unmarshal(data, v); err != nil {
			log.Warn().Err(err).Msg("[app] read config")
		}
	}
}

// PatchConfig sets one key in the config file, creating parent maps as
// needed. A nil value removes the key. The file is rewritten with
// normalized formatting.
func PatchConfig(path []string, value any) error {
	if ConfigPath == "" {
		return errors.New("config file disabled")
	}
	if len(path) == 0 {
		return errors.New("empty config path")
	}

	// config file may be missing on the first write
	data, _ := os.ReadFile(ConfigPath)

	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root == nil {
		root = map[string]any{}
	}

	node := root
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}

	if last := path[len(path)-1]; value != nil {
		node[last] = value
	} else {
		delete(node, last)
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	return os.WriteFile(ConfigPath, []byte(b.String()), 0644)
}

type Config []string

func (c *Config) String() string {
	return strings.Join(*c, " ")
}

func (c *Config) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var configs [][]byte

var envRe = regexp.MustCompile(`\${([^}{]+)}`)

// replaceEnvVars expands ${VAR} and ${VAR:default} in config text.
// Unknown vars without a default stay as is.
func replaceEnvVars(text string) string {
	return envRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]

		var def string
		var hasDef bool

		if i := strings.IndexByte(key, ':'); i > 0 {
			key, def = key[:i], key[i+1:]
			hasDef = true
		}

		if value, ok := os.LookupEnv(key); ok {
			return value
		}

		if hasDef {
			return def
		}

		return match
	})
}
