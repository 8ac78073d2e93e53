package fakeidentity

import (
	"context"
	"sync"

	"github.com/carelink/authgate/identity"
)

var _ identity.Client = (*FakeClient)(nil)

// FakeClient is a configurable identity.Client for tests. Each operation
// returns the corresponding stubbed result and counts its calls.
type FakeClient struct {
	lock sync.Mutex

	LoginGrant Grant
	LoginErr   error
	loginCalls int

	RegisterErr   error
	registerCalls int

	VerifyGrant Grant
	VerifyErr   error
	verifyCalls int

	ResendErr   error
	resendCalls int

	ForgotErr   error
	forgotCalls int

	ResetErr   error
	resetCalls int

	ExchangeGrant Grant
	ExchangeErr   error
	exchangeCalls int

	RefreshGrant Grant
	RefreshErr   error
	refreshCalls int

	// RefreshHook, when set, runs inside Refresh while no lock is held. Lets
	// tests block a refresh mid-flight or trigger a logout underneath it.
	RefreshHook func(ctx context.Context, refreshToken string)
}

// Grant aliases identity.Grant for stubbing convenience.
type Grant = identity.Grant

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Login(_ context.Context, _, _ string) (identity.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.loginCalls++
	return f.LoginGrant, f.LoginErr
}

func (f *FakeClient) Register(_ context.Context, _ identity.Registration) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.registerCalls++
	return f.RegisterErr
}

func (f *FakeClient) VerifyOTP(_ context.Context, _, _ string) (identity.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.verifyCalls++
	return f.VerifyGrant, f.VerifyErr
}

func (f *FakeClient) ResendOTP(_ context.Context, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.resendCalls++
	return f.ResendErr
}

func (f *FakeClient) ForgotPassword(_ context.Context, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.forgotCalls++
	return f.ForgotErr
}

func (f *FakeClient) ResetPassword(_ context.Context, _, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.resetCalls++
	return f.ResetErr
}

func (f *FakeClient) ExchangeOAuthCode(_ context.Context, _, _ string) (identity.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.exchangeCalls++
	return f.ExchangeGrant, f.ExchangeErr
}

func (f *FakeClient) Refresh(ctx context.Context, refreshToken string) (identity.Grant, error) {
	if f.RefreshHook != nil {
		f.RefreshHook(ctx, refreshToken)
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshCalls++
	return f.RefreshGrant, f.RefreshErr
}

func (f *FakeClient) LoginCalls() int { f.lock.Lock(); defer f.lock.Unlock(); return f.loginCalls }
func (f *FakeClient) RegisterCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.registerCalls
}
func (f *FakeClient) VerifyCalls() int { f.lock.Lock(); defer f.lock.Unlock(); return f.verifyCalls }
func (f *FakeClient) ResendCalls() int { f.lock.Lock(); defer f.lock.Unlock(); return f.resendCalls }
func (f *FakeClient) ForgotCalls() int { f.lock.Lock(); defer f.lock.Unlock(); return f.forgotCalls }
func (f *FakeClient) ResetCalls() int  { f.lock.Lock(); defer f.lock.Unlock(); return f.resetCalls }
func (f *FakeClient) ExchangeCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.exchangeCalls
}
func (f *FakeClient) RefreshCalls() int { f.lock.Lock(); defer f.lock.Unlock(); return f.refreshCalls }
