package oauthflow

import (
	"fmt"
	"sync"
	"time"
)

const stateTimeout = 15 * time.Minute

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// InMemoryRepo is an in-memory implementation of Repo. Flow state is
// short-lived, so entries past the timeout read as not found.
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]*FlowState
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]*FlowState),
	}
}

func (r *InMemoryRepo) Upsert(state string, flowState *FlowState) error {
	if state == "" {
		return fmt.Errorf("state is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if flowState.CreatedAt.IsZero() {
		flowState.CreatedAt = NowTimeFunc()
	}
	r.states[state] = flowState
	return nil
}

func (r *InMemoryRepo) Get(state string) (*FlowState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flowState, ok := r.states[state]
	if !ok {
		return nil, fmt.Errorf("state not found")
	}
	if NowTimeFunc().Sub(flowState.CreatedAt) > stateTimeout {
		return nil, fmt.Errorf("state expired")
	}
	return flowState, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}
