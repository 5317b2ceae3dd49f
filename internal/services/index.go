package services

import (
	"sync"

	"github.com/algofinserve/stock-alerts/internal/models"
)

type indexKey struct {
	Name      string
	Direction models.Direction
}

// AlertIndex holds the per-run in-memory views of received events: by symbol
// and by scan name, each an append-only list. It backs same-run analytics and
// the end-of-day report only; persistence and recommendations never read it.
// Created once per process run and cleared explicitly at end of day.
type AlertIndex struct {
	mu       sync.RWMutex
	bySymbol map[indexKey][]models.AlertEvent
	byScan   map[indexKey][]models.AlertEvent
}

// NewAlertIndex creates an empty index.
func NewAlertIndex() *AlertIndex {
	return &AlertIndex{
		bySymbol: make(map[indexKey][]models.AlertEvent),
		byScan:   make(map[indexKey][]models.AlertEvent),
	}
}

// Append records an event under both views and reports whether the symbol had
// already alerted in the same direction this run. The check and the append
// are atomic so concurrent producers never double-create a list.
func (x *AlertIndex) Append(ev models.AlertEvent) (repeat bool) {
	symKey := indexKey{Name: ev.Symbol, Direction: ev.Direction}
	scanKey := indexKey{Name: ev.ScanName, Direction: ev.Direction}

	x.mu.Lock()
	defer x.mu.Unlock()

	_, repeat = x.bySymbol[symKey]
	x.bySymbol[symKey] = append(x.bySymbol[symKey], ev)
	x.byScan[scanKey] = append(x.byScan[scanKey], ev)
	return repeat
}

// BySymbol returns a copy of one symbol's events for a direction.
func (x *AlertIndex) BySymbol(symbol string, dir models.Direction) []models.AlertEvent {
	x.mu.RLock()
	defer x.mu.RUnlock()

	events := x.bySymbol[indexKey{Name: symbol, Direction: dir}]
	out := make([]models.AlertEvent, len(events))
	copy(out, events)
	return out
}

// Snapshot returns a copy of the full by-symbol view for report generation.
func (x *AlertIndex) Snapshot() map[string]map[models.Direction][]models.AlertEvent {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := make(map[string]map[models.Direction][]models.AlertEvent)
	for key, events := range x.bySymbol {
		byDir, ok := snap[key.Name]
		if !ok {
			byDir = make(map[models.Direction][]models.AlertEvent)
			snap[key.Name] = byDir
		}
		list := make([]models.AlertEvent, len(events))
		copy(list, events)
		byDir[key.Direction] = list
	}
	return snap
}

// Clear drops all accumulated events.
func (x *AlertIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.bySymbol = make(map[indexKey][]models.AlertEvent)
	x.byScan = make(map[indexKey][]models.AlertEvent)
}
