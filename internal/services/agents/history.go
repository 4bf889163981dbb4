package agents

import (
	"sync"

	"TradeOrdu/internal/domain/models"
)

type historyKey struct {
	agent  string
	symbol string
}

// HistoryBook keeps a bounded result history per (agent, instrument). Agents
// receive copies; only the orchestrator appends.
type HistoryBook struct {
	mu       sync.RWMutex
	capacity int
	entries  map[historyKey][]models.HistoryEntry
}

func NewHistoryBook(capacity int) *HistoryBook {
	if capacity <= 0 {
		capacity = 50
	}
	return &HistoryBook{capacity: capacity, entries: make(map[historyKey][]models.HistoryEntry)}
}

// Snapshot returns a copy of the history of agent on symbol, oldest first.
func (h *HistoryBook) Snapshot(agent, symbol string) []models.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.entries[historyKey{agent, symbol}]
	if len(src) == 0 {
		return nil
	}
	return append([]models.HistoryEntry(nil), src...)
}

// Append records the results of one cycle for symbol.
func (h *HistoryBook) Append(cycleID, symbol string, results []models.AgentResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range results {
		key := historyKey{r.Agent, symbol}
		list := append(h.entries[key], models.HistoryEntry{CycleID: cycleID, Result: r})
		if over := len(list) - h.capacity; over > 0 {
			list = append([]models.HistoryEntry(nil), list[over:]...)
		}
		h.entries[key] = list
	}
}

// Annotate stamps the realized direction on the entries symbol got in
// cycle cycleID. Entries that already carry a result and entries of other
// cycles are left alone. It returns how many entries were stamped.
func (h *HistoryBook) Annotate(symbol, cycleID string, realized models.Direction) int {
	if cycleID == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for key, list := range h.entries {
		if key.symbol != symbol {
			continue
		}
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].CycleID == cycleID && list[i].Realized == "" {
				list[i].Realized = realized
				n++
			}
		}
	}
	return n
}
