package gateway

import (
	"cmp"
	"net/http"
	"slices"
	"time"

	"github.com/flemzord/tabllm/internal/provider"
)

type providerHealth struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	Failures      int        `json:"failures"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

type healthResponse struct {
	Status    string           `json:"status"`
	Providers []providerHealth `json:"providers,omitempty"`
}

// handleHealth reports "ok" when every provider is usable, "degraded" when
// some are dead and "down" (503) when all of them are.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.Health == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	report := s.Health.Report()
	dead := 0
	for name, st := range report {
		ph := providerHealth{Name: name, State: st.State.String(), Failures: st.Failures}
		if !st.CooldownUntil.IsZero() {
			until := st.CooldownUntil
			ph.CooldownUntil = &until
		}
		if st.State == provider.StateDead {
			dead++
		}
		resp.Providers = append(resp.Providers, ph)
	}
	slices.SortFunc(resp.Providers, func(a, b providerHealth) int {
		return cmp.Compare(a.Name, b.Name)
	})

	status := http.StatusOK
	switch {
	case len(report) > 0 && dead == len(report):
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	case dead > 0:
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}
