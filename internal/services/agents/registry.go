package agents

import (
	"fmt"
	"sort"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/domain/service"
	"TradeOrdu/internal/services/features"
)

// Roster returns every agent variant in a stable order.
func Roster() []service.Agent {
	return []service.Agent{
		Scalp{},
		Midterm{},
		Pattern{},
		Momentum{},
		Orderbook{},
		Volume{},
		Whale{},
		DumpPump{},
		Sentiment{},
		AnomalyDiscovery{},
	}
}

// Registry is the enabled roster with resolved parameters.
type Registry struct {
	agents []service.Agent
	params map[string]models.Params
}

// NewRegistry drops disabled agents and merges per-agent overrides into the
// defaults. Unknown names are rejected.
func NewRegistry(disabled []string, overrides map[string]map[string]float64) (*Registry, error) {
	known := make(map[string]service.Agent)
	for _, a := range Roster() {
		known[a.Name()] = a
	}

	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("disable unknown agent %q", name)
		}
		off[name] = true
	}
	for name := range overrides {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("override for unknown agent %q", name)
		}
	}

	r := &Registry{params: make(map[string]models.Params)}
	for _, a := range Roster() {
		r.params[a.Name()] = a.DefaultParams().Merge(overrides[a.Name()])
		if !off[a.Name()] {
			r.agents = append(r.agents, a)
		}
	}
	return r, nil
}

func (r *Registry) Agents() []service.Agent { return r.agents }

// Params returns a private copy of the resolved parameters of name.
func (r *Registry) Params(name string) models.Params {
	return r.params[name].Clone()
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Name())
	}
	sort.Strings(out)
	return out
}

// DumpPumpThresholds are the regime limits the bundle builder must share
// with the dump/pump agent.
func (r *Registry) DumpPumpThresholds() features.DumpPumpThresholds {
	return DumpPump{}.Thresholds(r.params[DumpPump{}.Name()])
}
