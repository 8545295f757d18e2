// Package identityfakes provides a configurable in-memory identity.API for
// tests.
package identityfakes

import (
	"context"
	"sync"

	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/session"
)

// FakeAPI implements identity.API with overridable behavior per operation.
// The zero value rejects everything with identity.ErrInvalidGrant.
type FakeAPI struct {
	mu sync.Mutex

	ExchangeCredentialsFn func(ctx context.Context, email, password string) (*session.Session, error)
	ExchangeCodeFn        func(ctx context.Context, code string) (*session.Session, error)
	RefreshFn             func(ctx context.Context, refreshToken string) (*session.Session, error)
	FetchUserFn           func(ctx context.Context, accessToken string) (*session.User, error)
	SignOutFn             func(ctx context.Context, accessToken string) error

	RefreshCalls  int
	SignOutCalls  int
	UserFetches   int
	CodeExchanges int
}

// NewFakeAPI returns an empty fake.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{}
}

func (f *FakeAPI) ExchangeCredentials(ctx context.Context, email, password string) (*session.Session, error) {
	f.mu.Lock()
	fn := f.ExchangeCredentialsFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.ErrInvalidGrant
	}
	return fn(ctx, email, password)
}

func (f *FakeAPI) ExchangeCode(ctx context.Context, code string) (*session.Session, error) {
	f.mu.Lock()
	f.CodeExchanges++
	fn := f.ExchangeCodeFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.ErrInvalidGrant
	}
	return fn(ctx, code)
}

func (f *FakeAPI) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	f.mu.Lock()
	f.RefreshCalls++
	fn := f.RefreshFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.ErrInvalidGrant
	}
	return fn(ctx, refreshToken)
}

func (f *FakeAPI) FetchUser(ctx context.Context, accessToken string) (*session.User, error) {
	f.mu.Lock()
	f.UserFetches++
	fn := f.FetchUserFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.ErrInvalidGrant
	}
	return fn(ctx, accessToken)
}

func (f *FakeAPI) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.SignOutCalls++
	fn := f.SignOutFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, accessToken)
}

var _ identity.API = (*FakeAPI)(nil)
