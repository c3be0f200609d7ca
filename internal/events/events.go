package events

import "context"

// Channels
const (
	ChannelCampaign = "events:campaign"
	ChannelPost     = "events:post"
)

// Event types
const (
	EventCampaignStatusChanged = "campaign_status_changed"
	EventPostScheduled         = "post_scheduled"
	EventPostPublished         = "post_published"
	EventPlatformPublishFailed = "platform_publish_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops every event. Used where no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
