package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const readyCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency check reported on /readyz. The booking
// server registers its data store and, when configured, the Kafka brokers.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// NewBaseMuxWithReady returns a mux preloaded with liveness and readiness
// endpoints. /healthz always answers ok; /readyz runs every registered check
// and lists the ones that fail.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", writeOK)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		var failed []string
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
			err := c.Check(ctx)
			cancel()
			if err != nil {
				name := c.Name
				if name == "" {
					name = "dependency"
				}
				failed = append(failed, name+": "+err.Error())
			}
		}
		if len(failed) > 0 {
			http.Error(w, strings.Join(failed, "; "), http.StatusServiceUnavailable)
			return
		}
		writeOK(w, r)
	})
	return mux
}

func writeOK(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
