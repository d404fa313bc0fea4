package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAuthFailed is returned for an unknown account or a wrong session key.
var ErrAuthFailed = errors.New("authentication failed")

// SessionKey is the key pair handed to the client by the login server.
type SessionKey struct {
	PlayKey1  int32
	PlayKey2  int32
	LoginKey1 int32
	LoginKey2 int32
}

// Authenticator verifies a client's login-server session key.
type Authenticator interface {
	Authenticate(ctx context.Context, account string, key SessionKey) error
}

// StaticAuthenticator checks keys against a fixed table. With an empty
// table every non-empty account is accepted.
type StaticAuthenticator struct {
	mu   sync.RWMutex
	keys map[string]SessionKey
}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{keys: make(map[string]SessionKey)}
}

// Grant registers the session key expected for account.
func (a *StaticAuthenticator) Grant(account string, key SessionKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[account] = key
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, account string, key SessionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrAuthFailed)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.keys) == 0 {
		return nil
	}

	want, ok := a.keys[account]
	if !ok || want != key {
		return fmt.Errorf("%w: %s", ErrAuthFailed, account)
	}

	return nil
}
