package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// publisherCache keeps one publisher per topic so the client's batching
// settings span rows and batches.
type publisherCache struct {
	build  publisherFactory
	topics map[string]publisher
}

func newPublisherCache(build publisherFactory) *publisherCache {
	return &publisherCache{build: build, topics: make(map[string]publisher)}
}

func (c *publisherCache) get(topic string) publisher {
	if pub, ok := c.topics[topic]; ok {
		return pub
	}
	pub := c.build(topic)
	if pub != nil {
		c.topics[topic] = pub
	}
	return pub
}

func (c *publisherCache) stopAll() {
	for _, pub := range c.topics {
		if s, ok := pub.(interface{ Stop() }); ok {
			s.Stop()
		}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p: p}
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func (g gcpPublisher) Stop() {
	g.p.Stop()
}
