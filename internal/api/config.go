package api

import (
	"io"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmslab/go2vms/internal/app"
)

func configHandler(w http.ResponseWriter, r *http.Request) {
	if app.ConfigPath == "" {
		http.Error(w, "", http.StatusGone)
		return
	}

	switch r.Method {
	case "GET":
		data, err := os.ReadFile(app.ConfigPath)
		if err != nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		// https://www.ietf.org/archive/id/draft-ietf-httpapi-yaml-mediatypes-00.html
		Response(w, data, "application/yaml")

	case "POST", "PATCH":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if r.Method == "PATCH" {
			data, err = mergeYAML(app.ConfigPath, data)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		} else {
			// reject broken YAML before it lands in the file
			var tmp struct{}
			if err = yaml.Unmarshal(data, &tmp); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		if err = os.WriteFile(app.ConfigPath, data, 0644); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

// mergeYAML applies a patch document on top of the current config file.
// A missing file counts as an empty config.
func mergeYAML(path string, patch []byte) ([]byte, error) {
	data, _ := os.ReadFile(path)

	var dst map[string]any
	if err := yaml.Unmarshal(data, &dst); err != nil {
		return nil, err
	}
	if dst == nil {
		dst = map[string]any{}
	}

	var src map[string]any
	if err := yaml.Unmarshal(patch, &src); err != nil {
		return nil, err
	}

	return yaml.Marshal(merge(dst, src))
}

// merge deep-merges maps, any other src type replaces the dst value.
func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				dst[k] = merge(cur, sub)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
