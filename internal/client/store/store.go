// Package store is the key-value store on the employee's device. The site
// visit flow keeps its cached session under the keys below.
package store

import "context"

const (
	KeySessionID      = "site_session_id"
	KeyStage          = "site_stage"
	KeyClientLocation = "client_location"
)

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
