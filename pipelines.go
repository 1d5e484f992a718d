package rca

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// pipelineBuilder constructs the pipeline for a key on cache miss.
type pipelineBuilder func(key PipelineKey) (*Pipeline, error)

// pipelineCache memoizes constructed pipelines per PipelineKey for the
// process lifetime. Concurrent misses on the same key collapse into a
// single build; every waiter receives the same instance or the same
// error. Failed builds are not memoized, so the next caller retries.
type pipelineCache struct {
	group singleflight.Group

	mu    sync.RWMutex
	built map[PipelineKey]*Pipeline
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{built: make(map[PipelineKey]*Pipeline)}
}

// getOrBuild returns the cached pipeline for key, building it with
// build on first use.
func (c *pipelineCache) getOrBuild(key PipelineKey, build pipelineBuilder) (*Pipeline, error) {
	c.mu.RLock()
	p := c.built[key]
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// A Reset between the read above and this closure may have raced
		// with another builder; re-check under the singleflight.
		c.mu.RLock()
		p := c.built[key]
		c.mu.RUnlock()
		if p != nil {
			return p, nil
		}

		p, err := build(key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.built[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// reset drops every cached pipeline. In-flight builds complete against
// the old configuration; callers arriving after reset rebuild.
func (c *pipelineCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.built = make(map[PipelineKey]*Pipeline)
}

// size returns the number of cached pipelines.
func (c *pipelineCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.built)
}
