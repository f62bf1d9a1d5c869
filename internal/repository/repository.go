package repository

import (
	"context"
	"errors"
	"strings"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore keeps one opaque blob per key, the way browser local storage
// keeps one string per key. Consumers define this interface.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Keys builds the namespaced storage keys for one client scope. Cart and auth
// always live under different keys.
type Keys struct {
	Namespace string
}

func (k Keys) Cart(scope string) string {
	return k.build("cart", scope)
}

func (k Keys) Auth(scope string) string {
	return k.build("auth", scope)
}

func (k Keys) build(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if ns := strings.TrimSpace(k.Namespace); ns != "" {
		segments = append(segments, ns)
	}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
