package app

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// MemoryLog keeps the tail of the log for the HTTP API, even when the
// console output is disabled.
var MemoryLog = newMemoryLog(512)

var Logger zerolog.Logger

// GetLogger returns the app logger, limited to the level configured for
// the named module.
func GetLogger(module string) zerolog.Logger {
	if s, ok := modules[module]; ok {
		lvl, err := zerolog.ParseLevel(s)
		if err == nil {
			return Logger.Level(lvl)
		}
		Logger.Warn().Err(err).Caller().Send()
	}

	return Logger
}

// GetLogFilepath returns the configured log file path, empty when the
// log does not go to a file.
func GetLogFilepath() string {
	return modules["file"]
}

// initLogger supports:
//   - output: empty (only to memory), stderr, stdout
//   - file:   empty or path to the log file
//   - format: empty (autodetect color support), color, json, text
//   - time:   empty (disable timestamp), UNIXMS, UNIXMICRO, UNIXNANO
//   - level:  disabled, trace, debug, info, warn, error
func initLogger() {
	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}

	cfg.Mod = modules // will be merged by LoadConfig

	LoadConfig(&cfg)

	var writer io.Writer

	switch modules["output"] {
	case "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	}

	timeFormat := modules["time"]

	if writer != nil {
		if format := modules["format"]; format != "json" {
			console := &zerolog.ConsoleWriter{Out: writer}

			switch format {
			case "text":
				console.NoColor = true
			case "color":
				console.NoColor = false
			default:
				console.NoColor = !isatty.IsTerminal(writer.(*os.File).Fd())
			}

			if timeFormat != "" {
				console.TimeFormat = "15:04:05.000"
			} else {
				console.PartsOrder = []string{
					zerolog.LevelFieldName,
					zerolog.CallerFieldName,
					zerolog.MessageFieldName,
				}
			}

			writer = console
		}

		writer = zerolog.MultiLevelWriter(writer, MemoryLog)
	} else {
		writer = MemoryLog
	}

	if path := modules["file"]; path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			writer = zerolog.MultiLevelWriter(writer, f)
		}
	}

	lvl, _ := zerolog.ParseLevel(modules["level"])
	Logger = zerolog.New(writer).Level(lvl)

	if timeFormat != "" {
		zerolog.TimeFieldFormat = timeFormat
		Logger = Logger.With().Timestamp().Logger()
	}
}

// module name to log level, plus the logger's own settings
var modules = map[string]string{
	"format": "",
	"level":  "info",
	"output": "stdout",
	"time":   zerolog.TimeFormatUnixMs,
}

// memoryLog is a ring of recent log lines. Zerolog emits one line per
// Write call, so every slot holds a whole line.
type memoryLog struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	full  bool
}

func newMemoryLog(lines int) *memoryLog {
	return &memoryLog{lines: make([][]byte, lines)}
}

func (m *memoryLog) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)

	m.mu.Lock()
	m.lines[m.next] = b
	if m.next++; m.next == len(m.lines) {
		m.next = 0
		m.full = true
	}
	m.mu.Unlock()

	return len(p), nil
}

// WriteTo dumps the buffered lines in order, oldest first.
func (m *memoryLog) WriteTo(w io.Writer) (n int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if m.full {
		start = m.next
	}

	for i := 0; i < len(m.lines); i++ {
		b := m.lines[(start+i)%len(m.lines)]
		if b == nil {
			break
		}

		nn, err := w.Write(b)
		n += int64(nn)
		if err != nil {
			return n, err
		}
	}

	return
}

func (m *memoryLog) Reset() {
	m.mu.Lock()
	for i := range m.lines {
		m.lines[i] = nil
	}
	m.next = 0
	m.full = false
	m.mu.Unlock()
}
