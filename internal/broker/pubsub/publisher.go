// Package pubsub publishes order notifications through a gocloud.dev topic URL, for example
// awssqs://sqs.eu-west-1.amazonaws.com/123456789012/tracking-updates?region=eu-west-1 in
// production or mem://order-events locally.
package pubsub

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"gocloud.dev/pubsub"

	_ "gocloud.dev/pubsub/awssnssqs"
	_ "gocloud.dev/pubsub/mempubsub"
)

const metadataKey = "key"

// Publisher opens topics lazily and keeps them open until Close.
type Publisher struct {
	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPublisher() *Publisher {
	return &Publisher{topics: make(map[string]*pubsub.Topic)}
}

func (p *Publisher) topic(ctx context.Context, url string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[url]; ok {
		return t, nil
	}
	t, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "open topic")
	}
	p.topics[url] = t
	return t, nil
}

// Publish sends value to the topic at topicURL. The key travels as message metadata since SQS has
// no message key.
func (p *Publisher) Publish(ctx context.Context, topicURL string, key, value []byte) error {
	t, err := p.topic(ctx, topicURL)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{Body: value}
	if len(key) > 0 {
		msg.Metadata = map[string]string{metadataKey: string(key)}
	}
	if err := t.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "pubsub publish")
	}
	return nil
}

func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for url, t := range p.topics {
		if err := t.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "shutdown topic %s", url)
		}
		delete(p.topics, url)
	}
	return firstErr
}
