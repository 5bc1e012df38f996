package handlers

import (
	"net/http"
	"runtime"
)

// Health answers liveness probes with the build version.
func Health(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"go":      runtime.Version(),
		})
	}
}
