package engine

import (
	"context"
	"sync"

	"github.com/ivlev/scenecast/internal/config"
	"github.com/ivlev/scenecast/internal/scene"
)

// Channel is a named export slot ("part1", "part2", ...). It runs at most one
// session at a time: starting a render cancels the previous one and drops its
// result. Channels are independent of each other.
type Channel struct {
	name string
	cfg  *config.Config
	opts []Option

	mu      sync.Mutex
	current *Session
	last    *Result
}

// NewChannel creates a channel whose sessions use cfg and opts.
func NewChannel(name string, cfg *config.Config, opts ...Option) *Channel {
	return &Channel{name: name, cfg: cfg, opts: opts}
}

// Name is the channel name.
func (c *Channel) Name() string { return c.name }

// Start renders scenes in a fresh session, superseding any render in flight.
func (c *Channel) Start(ctx context.Context, scenes []scene.Scene, obs Observer) *Result {
	opts := append(append([]Option{}, c.opts...), WithChannel(c.name))
	sess := NewSession(c.cfg, opts...)

	c.mu.Lock()
	prev := c.current
	c.current = sess
	c.last.Release()
	c.last = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		<-prev.Done()
	}

	res := sess.Run(ctx, scenes, obs)

	c.mu.Lock()
	if c.current == sess {
		c.last = res
	} else {
		res.Release()
	}
	c.mu.Unlock()
	return res
}

// Cancel stops the render in flight, if any.
func (c *Channel) Cancel() {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
}

// Current is the most recently started session, or nil.
func (c *Channel) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Last is the result of the latest finished render not yet superseded.
func (c *Channel) Last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
