package youtube

import (
	"context"
	"fmt"
	"strings"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/schedule"
)

const listPageSize = 50

// Resolve maps a service id to the channel's stream named
// "{campus} Stream {serviceID}". The channel's streams are listed once and
// cached for the life of the client.
func (c *Client) Resolve(serviceID, campus string) (model.StreamRef, error) {
	if err := c.loadStreams(context.Background()); err != nil {
		return model.StreamRef{}, err
	}

	want := fmt.Sprintf("%s Stream %s", campus, strings.ToUpper(serviceID))
	ref, ok := c.streamByTitle[want]
	if !ok {
		return model.StreamRef{}, fmt.Errorf("%w: expected a stream titled %q", schedule.ErrStreamNotFound, want)
	}

	c.serviceByStream[ref.ID] = strings.ToUpper(serviceID)
	appLog.Info("mapped service to stream", "service", serviceID, "stream", ref.Title)
	return ref, nil
}

func (c *Client) loadStreams(ctx context.Context) error {
	if c.streamByTitle != nil {
		return nil
	}

	resp, err := c.svc.LiveStreams.List([]string{"id", "snippet"}).
		Mine(true).
		MaxResults(listPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	c.streamByTitle = make(map[string]model.StreamRef, len(resp.Items))
	c.serviceByStream = make(map[string]string)
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		c.streamByTitle[item.Snippet.Title] = model.StreamRef{
			ID:    item.Id,
			Title: item.Snippet.Title,
		}
	}

	appLog.Info("loaded existing streams", "count", len(c.streamByTitle))
	return nil
}
