package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// All probes share this deadline.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (for example the webhook queue).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthReport is the data payload of a healthy response.
type HealthReport struct {
	Version    string            `json:"version"`
	Commit     string            `json:"commit"`
	Components map[string]string `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently under a short deadline. It
// answers 200 with build info when all pass and 503 naming the failed
// probes otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		statuses = make(map[string]string, len(s.HealthProbes))
		failed   []string
	)

	// A plain group: one failing probe must not cancel the others.
	var g errgroup.Group
	for _, probe := range s.HealthProbes {
		g.Go(func() (err error) {
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("probe panicked: %v", rvr)
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					statuses[probe.Name()] = "unhealthy"
					failed = append(failed, probe.Name())
					s.Logger.Warn("health probe failed", "probe", probe.Name(), "error", err)
				} else {
					statuses[probe.Name()] = "healthy"
				}
			}()
			return probe.Check(ctx)
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		JSON(w, r, http.StatusServiceUnavailable, Envelope{
			Code:    http.StatusServiceUnavailable,
			Message: "unhealthy: " + strings.Join(failed, ", "),
		})
		return
	}

	Success("ok", HealthReport{
		Version:    s.Config.Build.Version,
		Commit:     s.Config.Build.Commit,
		Components: statuses,
	}).Write(w, r)
}
