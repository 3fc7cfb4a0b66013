// Copyright Contributors to the KubeTask project

// Package agent implements the flow-run agent's core: the poll loop,
// the work-queue cache, the submission coordinator, and the
// infrastructure resolver.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/model"
)

// cacheTTL is how long a fetched set of work queues is reused before
// the agent asks the server again.
const cacheTTL = 30 * time.Second

// queueCache is a lazy, time-bounded memoization of the server's named
// work queues. It holds the queues obtained at the last refresh and
// that refresh's expiration; it is served while the expiration is
// strictly in the future and refreshed otherwise. A refresh in which no
// queue could be obtained leaves it empty until that expiration.
type queueCache struct {
	mu         sync.Mutex
	names      []string
	queues     []model.WorkQueue
	expiration time.Time
	now        func() time.Time
}

func newQueueCache(names []string) *queueCache {
	return &queueCache{names: names, now: time.Now}
}

// get returns the agent's work queues, refreshing from the server when
// the cache has expired. A queue that cannot be read or created this
// tick (typically a creation race) is logged and omitted; it is
// re-attempted on the next refresh, once the cache has expired.
func (c *queueCache) get(ctx context.Context, cl client.Client, log logr.Logger) []model.WorkQueue {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.expiration) {
		return append([]model.WorkQueue(nil), c.queues...)
	}

	c.queues = nil
	c.expiration = now.Add(cacheTTL)

	for _, name := range c.names {
		queue, err := cl.ReadWorkQueueByName(ctx, name)
		if errors.Is(err, client.ErrNotFound) {
			queue, err = cl.CreateWorkQueue(ctx, name)
			if err != nil {
				log.Info("skipping work queue this tick: creation race", "queue", name, "error", err.Error())
				continue
			}
		} else if err != nil {
			log.Info("skipping work queue this tick: read failed", "queue", name, "error", err.Error())
			continue
		}
		c.queues = append(c.queues, queue)
	}

	return append([]model.WorkQueue(nil), c.queues...)
}
