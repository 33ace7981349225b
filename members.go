package sdyn

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) ListMembers(ctx context.Context, params ListParams) (*Page[Member], error) {
	var page Page[Member]
	if err := c.doGET(ctx, "/members", params.Values(), &page); err != nil {
		return nil, errors.Wrap(err, "list members")
	}
	return &page, nil
}

// GetMember returns nil without error when the member does not exist.
func (c *Client) GetMember(ctx context.Context, id string) (*Member, error) {
	var member Member
	err := c.doGET(ctx, "/members/"+url.PathEscape(id), nil, &member)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get member %s", id)
	}
	return &member, nil
}

func (c *Client) CreateMember(ctx context.Context, in MemberInput) (*Member, error) {
	var member Member
	if err := c.doJSON(ctx, http.MethodPost, "/members", in, &member); err != nil {
		return nil, errors.Wrap(err, "create member")
	}
	return &member, nil
}

func (c *Client) UpdateMember(ctx context.Context, id string, in MemberInput) (*Member, error) {
	var member Member
	if err := c.doJSON(ctx, http.MethodPut, "/members/"+url.PathEscape(id), in, &member); err != nil {
		return nil, errors.Wrapf(err, "update member %s", id)
	}
	return &member, nil
}

func (c *Client) DeleteMember(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/members/"+url.PathEscape(id), nil, nil); err != nil {
		return errors.Wrapf(err, "delete member %s", id)
	}
	return nil
}

func (c *Client) UpdateMemberStatus(ctx context.Context, id string, status MemberStatus, reason string) error {
	in := struct {
		Status MemberStatus `json:"status"`
		Reason string       `json:"reason,omitempty"`
	}{status, reason}
	if err := c.doJSON(ctx, http.MethodPost, "/members/"+url.PathEscape(id)+"/status", in, nil); err != nil {
		return errors.Wrapf(err, "update member %s status", id)
	}
	return nil
}

func (c *Client) MemberHistory(ctx context.Context, id string) ([]MemberHistory, error) {
	var history []MemberHistory
	if err := c.doGET(ctx, "/members/"+url.PathEscape(id)+"/history", nil, &history); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get member %s history", id)
	}
	return history, nil
}
