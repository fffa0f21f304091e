package repository

import (
	"errors"
	"sync"
)

// Operator is a console account allowed to open a session.
type Operator struct {
	ID       string `json:"id"`
	Callsign string `json:"callsign"`
}

// OperatorRepository validates console credentials.
type OperatorRepository interface {
	ValidateOperator(callsign, accessKey string) (*Operator, error)
}

// MemoryOperatorRepository is an in-memory credential store with
// pre-registered operators, for development and testing.
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[string]*Operator
	keys      map[string]string // callsign -> access key
}

// NewMemoryOperatorRepository creates a store seeded with test operators.
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	repo := &MemoryOperatorRepository{
		operators: make(map[string]*Operator),
		keys:      make(map[string]string),
	}

	repo.addOperator("SENTINEL01", "ghost-protocol")
	repo.addOperator("SENTINEL02", "zero-day")

	return repo
}

func (m *MemoryOperatorRepository) addOperator(callsign, accessKey string) {
	m.operators[callsign] = &Operator{
		ID:       "operator-" + callsign,
		Callsign: callsign,
	}
	m.keys[callsign] = accessKey
}

// ValidateOperator checks a callsign and access key pair.
func (m *MemoryOperatorRepository) ValidateOperator(callsign, accessKey string) (*Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.keys[callsign]
	if !ok {
		return nil, errors.New("operator not found")
	}
	if stored != accessKey {
		return nil, errors.New("invalid credentials")
	}
	return m.operators[callsign], nil
}
