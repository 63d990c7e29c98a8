package youtube

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/youtube/v3"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// ListUpcoming returns the channel's broadcasts that have not started yet.
// A broadcast bound to one of the resolved service streams is keyed with
// that service id; anything else comes back with an empty service id and
// therefore never matches a planned occurrence.
func (c *Client) ListUpcoming(ctx context.Context) ([]model.Occurrence, error) {
	resp, err := c.svc.LiveBroadcasts.List([]string{"id", "snippet", "contentDetails", "status"}).
		BroadcastStatus("upcoming").
		MaxResults(listPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}

	out := make([]model.Occurrence, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Snippet.ScheduledStartTime)
		if err != nil {
			appLog.Warn("skipping broadcast with unparseable start time",
				"broadcast", item.Id, "start", item.Snippet.ScheduledStartTime)
			continue
		}

		var serviceID string
		if item.ContentDetails != nil {
			serviceID = c.serviceByStream[item.ContentDetails.BoundStreamId]
		}

		out = append(out, model.Occurrence{
			ServiceID:   serviceID,
			Start:       start,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			RemoteID:    model.RemoteID(item.Id),
		})
	}

	appLog.Info("fetched upcoming broadcasts", "count", len(out))
	return out, nil
}

// Create inserts a broadcast for occ, binds it to the occurrence's stream
// and, when a playlist is configured, prepends it there. The bind and
// playlist steps are part of the create: if either fails, the whole
// occurrence counts as failed.
func (c *Client) Create(ctx context.Context, occ model.Occurrence) (model.RemoteID, error) {
	projection := "rectangular"
	if occ.Is360 {
		projection = "360"
	}

	broadcast := &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              occ.Title,
			Description:        occ.Description,
			ScheduledStartTime: occ.Start.Format(time.RFC3339),
			ChannelId:          c.channelID,
		},
		Status: &youtube.LiveBroadcastStatus{
			PrivacyStatus:           occ.Privacy,
			SelfDeclaredMadeForKids: occ.MadeForKids,
		},
		ContentDetails: &youtube.LiveBroadcastContentDetails{
			EnableAutoStart: occ.AutoStart,
			EnableAutoStop:  occ.AutoStop,
			EnableDvr:       occ.DVREnabled,
			Projection:      projection,
		},
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := c.svc.LiveBroadcasts.Insert([]string{"snippet", "contentDetails", "status"}, broadcast).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insert broadcast: %w", err)
	}
	id := model.RemoteID(created.Id)

	if err := c.limiter.Wait(ctx); err != nil {
		return id, err
	}
	_, err = c.svc.LiveBroadcasts.Bind(created.Id, []string{"id", "contentDetails"}).
		StreamId(occ.StreamRef.ID).
		Context(ctx).
		Do()
	if err != nil {
		return id, fmt.Errorf("bind broadcast to stream %q: %w", occ.StreamRef.Title, err)
	}

	if c.playlistID != "" {
		if err := c.limiter.Wait(ctx); err != nil {
			return id, err
		}
		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: c.playlistID,
				Position:   0,
				ResourceId: &youtube.ResourceId{
					Kind:    "youtube#video",
					VideoId: created.Id,
				},
				ForceSendFields: []string{"Position"},
			},
		}
		if _, err := c.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			return id, fmt.Errorf("add broadcast to playlist: %w", err)
		}
	}

	return id, nil
}

// Delete removes a broadcast from the platform.
func (c *Client) Delete(ctx context.Context, id model.RemoteID) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.svc.LiveBroadcasts.Delete(string(id)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete broadcast %s: %w", id, err)
	}
	return nil
}
