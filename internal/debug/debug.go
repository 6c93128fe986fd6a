package debug

import (
	"bytes"
	"fmt"
	"net/http"
	"runtime"

	"github.com/vmslab/go2vms/internal/api"
)

func Init() {
	api.HandleFunc("api/stack", stackHandler)
}

// steady-state goroutines that only add noise to the dump
var stackSkip = [][]byte{
	// main.go
	[]byte("main.waitSignal()"),
	[]byte("created by os/signal.Notify"),

	// debug/debug.go
	[]byte("github.com/vmslab/go2vms/internal/debug.stackHandler"),

	// api/api.go
	[]byte("created by github.com/vmslab/go2vms/internal/api.Init"),
	[]byte("created by net/http.(*connReader).startBackgroundRead"),
	[]byte("created by net/http.(*Server).Serve"),
}

func stackHandler(w http.ResponseWriter, r *http.Request) {
	sep := []byte("\n\n")
	buf := make([]byte, 65535)
	i := 0
	n := runtime.Stack(buf, true)
	skipped := 0
	for _, item := range bytes.Split(buf[:n], sep) {
		for _, skip := range stackSkip {
			if bytes.Contains(item, skip) {
				item = nil
				skipped++
				break
			}
		}
		if item != nil {
			i += copy(buf[i:], item)
			i += copy(buf[i:], sep)
		}
	}
	i += copy(buf[i:], fmt.Sprintf("Total: %d, Skipped: %d", runtime.NumGoroutine(), skipped))

	api.Response(w, buf[:i], api.MimeText)
}
