package local

import (
	"context"
	"strings"

	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore"
)

// CredentialStore keeps the league PIN. The value is opaque to the client.
type CredentialStore struct {
	store kvstore.Store
}

func NewCredentialStore(store kvstore.Store) *CredentialStore {
	return &CredentialStore{store: store}
}

func (c *CredentialStore) PIN(ctx context.Context) (string, error) {
	value, _, err := c.store.Get(ctx, KeyPIN)
	if err != nil {
		return "", storageErr("get", KeyPIN, err)
	}
	return strings.TrimSpace(value), nil
}

func (c *CredentialStore) SetPIN(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return c.ClearPIN(ctx)
	}
	if err := c.store.Set(ctx, KeyPIN, pin); err != nil {
		return storageErr("set", KeyPIN, err)
	}
	return nil
}

func (c *CredentialStore) ClearPIN(ctx context.Context) error {
	if err := c.store.Delete(ctx, KeyPIN); err != nil {
		return storageErr("delete", KeyPIN, err)
	}
	return nil
}
