// Package presence tracks which users hold at least one open live connection.
package presence

import "context"

// Registry maps a user to the set of live connection ids they hold.
// A user is online iff that set is non-empty.
type Registry interface {
	// Add records connID for userID and reports whether the user just came online.
	Add(ctx context.Context, userID uint, connID string) (cameOnline bool, err error)
	// Remove drops connID and reports whether the user just went offline.
	Remove(ctx context.Context, userID uint, connID string) (wentOffline bool, err error)
	IsOnline(ctx context.Context, userID uint) bool
	Connections(ctx context.Context, userID uint) []string
	OnlineCount(ctx context.Context) int
}
