// Package oauthflow stores the transient state of a social-login round trip:
// the CSRF state parameter handed to the provider, keyed back on callback.
package oauthflow

import "time"

type FlowState struct {
	Provider  string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, flowState *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
