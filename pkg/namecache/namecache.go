// Package namecache caches Discord user and channel names for the web API.
package namecache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of names kept per kind.
const DefaultSize = 2048

// Resolver looks names up when they are not cached.
type Resolver interface {
	UserName(ctx context.Context, userID string) (string, error)
	ChannelName(ctx context.Context, channelID string) (string, error)
}

// Cache holds recently resolved names. Entries are evicted when Discord
// reports the user or channel changed.
type Cache struct {
	resolver Resolver
	users    *lru.Cache[string, string]
	channels *lru.Cache[string, string]
}

// New creates a cache. A nil resolver makes the cache lookup-only.
func New(resolver Resolver, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}

	users, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("error creating user cache: %w", err)
	}

	channels, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("error creating channel cache: %w", err)
	}

	return &Cache{
		resolver: resolver,
		users:    users,
		channels: channels,
	}, nil
}

// FallbackUserName is shown for users that cannot be resolved.
func FallbackUserName(userID string) string {
	return "User#" + userID
}

// UserName returns the display name for a user, falling back to User#{id}.
func (c *Cache) UserName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	if name, ok := c.users.Get(userID); ok {
		return name
	}

	if c.resolver != nil {
		if name, err := c.resolver.UserName(ctx, userID); err == nil && name != "" {
			c.users.Add(userID, name)
			return name
		}
	}
	return FallbackUserName(userID)
}

// ChannelName returns a channel's name, or "" if it cannot be resolved.
func (c *Cache) ChannelName(ctx context.Context, channelID string) string {
	if name, ok := c.channels.Get(channelID); ok {
		return name
	}

	if c.resolver != nil {
		if name, err := c.resolver.ChannelName(ctx, channelID); err == nil && name != "" {
			c.channels.Add(channelID, name)
			return name
		}
	}
	return ""
}

// SetUser records a user's name.
func (c *Cache) SetUser(userID, name string) {
	if name != "" {
		c.users.Add(userID, name)
	}
}

// SetChannel records a channel's name.
func (c *Cache) SetChannel(channelID, name string) {
	if name != "" {
		c.channels.Add(channelID, name)
	}
}

// EvictUser forgets a user's name.
func (c *Cache) EvictUser(userID string) {
	c.users.Remove(userID)
}

// EvictChannel forgets a channel's name.
func (c *Cache) EvictChannel(channelID string) {
	c.channels.Remove(channelID)
}
