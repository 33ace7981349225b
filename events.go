package sdyn

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) ListEvents(ctx context.Context, params ListParams) (*Page[Event], error) {
	var page Page[Event]
	if err := c.doGET(ctx, "/events", params.Values(), &page); err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	return &page, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var event Event
	err := c.doGET(ctx, "/events/"+url.PathEscape(id), nil, &event)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get event %s", id)
	}
	return &event, nil
}

func (c *Client) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	var event Event
	if err := c.doJSON(ctx, http.MethodPost, "/events", in, &event); err != nil {
		return nil, errors.Wrap(err, "create event")
	}
	return &event, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id string, in EventInput) (*Event, error) {
	var event Event
	if err := c.doJSON(ctx, http.MethodPut, "/events/"+url.PathEscape(id), in, &event); err != nil {
		return nil, errors.Wrapf(err, "update event %s", id)
	}
	return &event, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil); err != nil {
		return errors.Wrapf(err, "delete event %s", id)
	}
	return nil
}

// RegisterForEvent registers the caller's own member record.
func (c *Client) RegisterForEvent(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/register", nil, nil); err != nil {
		return errors.Wrapf(err, "register for event %s", id)
	}
	return nil
}

func (c *Client) EventParticipants(ctx context.Context, id string) ([]EventParticipant, error) {
	var participants []EventParticipant
	if err := c.doGET(ctx, "/events/"+url.PathEscape(id)+"/participants", nil, &participants); err != nil {
		return nil, errors.Wrapf(err, "list event %s participants", id)
	}
	return participants, nil
}

func (c *Client) MarkAttendance(ctx context.Context, id string, memberIDs []string, attended bool) error {
	in := struct {
		MemberIDs []string `json:"member_ids"`
		Attended  bool     `json:"attended"`
	}{memberIDs, attended}
	if err := c.doJSON(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/attendance", in, nil); err != nil {
		return errors.Wrapf(err, "mark event %s attendance", id)
	}
	return nil
}
