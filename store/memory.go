package store

import (
	"context"
	"sync"

	"astmgw/astm"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// It is meant for development and for the scenario tests in
// session/controller_scenarios_test.go; a real deployment supplies its
// own Store over whatever database the lab already runs.
type MemoryStore struct {
	mu       sync.Mutex
	readings []astm.Reading
	orders   map[string][]Order
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string][]Order)}
}

// InsertReadings appends readings to the in-memory log.
func (m *MemoryStore) InsertReadings(ctx context.Context, readings []astm.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, readings...)
	return nil
}

// FetchOrders returns the orders queued for labNumber via SetOrders,
// or an empty slice if none are queued.
func (m *MemoryStore) FetchOrders(ctx context.Context, labNumber string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Order(nil), m.orders[labNumber]...), nil
}

// SetOrders queues orders to be returned by a future FetchOrders for
// labNumber, e.g. from an LIS order-entry workflow feeding this
// gateway.
func (m *MemoryStore) SetOrders(labNumber string, orders []Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[labNumber] = orders
}

// Readings returns a snapshot of everything inserted so far.
func (m *MemoryStore) Readings() []astm.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]astm.Reading(nil), m.readings...)
}
