package sdyn

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Profile returns the member record linked to the caller's identity.
func (c *Client) Profile(ctx context.Context) (*Member, error) {
	var member Member
	if err := c.doGET(ctx, "/profile", nil, &member); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get profile")
	}
	return &member, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in MemberInput) (*Member, error) {
	var member Member
	if err := c.doJSON(ctx, http.MethodPut, "/profile", in, &member); err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	return &member, nil
}

func (c *Client) ProfileFees(ctx context.Context) ([]MembershipFee, error) {
	var fees []MembershipFee
	if err := c.doGET(ctx, "/profile/fees", nil, &fees); err != nil {
		return nil, errors.Wrap(err, "get profile fees")
	}
	return fees, nil
}

func (c *Client) ProfileEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := c.doGET(ctx, "/profile/events", nil, &events); err != nil {
		return nil, errors.Wrap(err, "get profile events")
	}
	return events, nil
}

// Register creates a pending member account. It is called without a token.
func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	anon, err := c.WithOpts(WithTokenSource(nil))
	if err != nil {
		return err
	}
	if err := anon.doJSON(ctx, http.MethodPost, "/auth/register", in, nil); err != nil {
		return errors.Wrap(err, "register")
	}
	return nil
}
