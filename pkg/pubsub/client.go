// Package pubsub connects to Google Cloud Pub/Sub for checkout lifecycle events.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

var (
	ErrTopicNotFound = errors.New("pubsub topic not found")

	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub checkout topic is required")
	errNotConnected      = errors.New("pubsub client not connected")
)

type Client struct {
	ps      *pubsub.Client
	project string
	topic   string
}

// NewClient connects to projectID and fails when the checkout topic is missing.
// PUBSUB_EMULATOR_HOST is honored by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.CheckoutTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"gcp_project": project, "topic": topic}), "pubsub client ready")
	}
	return c, nil
}

// Ping looks up the checkout topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotConnected
	}
	name := topicPath(c.project, c.topic)
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicNotFound, name)
	case err != nil:
		return fmt.Errorf("get topic %s: %w", name, err)
	}
	return nil
}

// Publisher returns a handle for topic, given as an id or a full resource
// name. Callers own the handle and must Stop it.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	name := topicPath(c.project, topic)
	if name == "" {
		return nil
	}
	return c.ps.Publisher(name)
}

func (c *Client) CheckoutPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.topic)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// topicPath expands a topic id to projects/<project>/topics/<id>. Full
// resource names pass through unchanged.
func topicPath(project, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case strings.TrimSpace(project) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(project) + "/topics/" + topic
}
