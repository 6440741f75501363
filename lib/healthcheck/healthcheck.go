// Package healthcheck is the process liveness endpoint for deployment
// platforms. It deliberately shares no state with the monitor: a healthy
// answer means the process is up, nothing more.
package healthcheck

import (
	"fmt"
	"log/slog"
	"net/http"
)

func Serve(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "slotwatch is running")
	})

	slog.Info("health listener starting", "port", port)
	return http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
}
