package sunlightmeter

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type LuxResults struct {
	JobID           string    `json:"jobID"`
	Time            time.Time `json:"time"`
	Lux             float64   `json:"lux"`
	Broadband       uint16    `json:"broadband"`
	InfraredCount   uint16    `json:"infraredCount"`
	FullSpectrum    float64   `json:"fullSpectrum"`
	Visible         float64   `json:"visible"`
	Infrared        float64   `json:"infrared"`
	Gain            int       `json:"gain"`
	IntegrationTime int       `json:"integrationTime"`
	GainChanged     bool      `json:"gainChanged"`
	Saturated       bool      `json:"saturated"`
}

// recentResults keeps the last n results in memory for the dashboard.
type recentResults struct {
	mu      sync.Mutex
	results []LuxResults
	max     int
}

func newRecentResults(max int) *recentResults {
	return &recentResults{max: max}
}

func (r *recentResults) Add(result LuxResults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	if len(r.results) > r.max {
		r.results = slices.Delete(r.results, 0, len(r.results)-r.max)
	}
}

func (r *recentResults) Latest() (LuxResults, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return LuxResults{}, false
	}
	return r.results[len(r.results)-1], true
}

func (r *recentResults) Snapshot() []LuxResults {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

func (r *recentResults) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = nil
}
