package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h := middlewareAuth("admin", "secret", ok)

	// remote clients need credentials
	r := httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Www-Authenticate"), "Basic")

	r = httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	r = httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// localhost skips the check
	r = httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "127.0.0.1:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestMiddlewareCORS(t *testing.T) {
	h := middlewareCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api", nil))
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponseJSON(t *testing.T) {
	w := httptest.NewRecorder()
	ResponseJSON(w, map[string]int{"n": 1})
	require.Equal(t, MimeJSON, w.Header().Get("Content-Type"))

	var v map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	require.Equal(t, 1, v["n"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.ErrServerClosed)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), http.ErrServerClosed.Error())
}
