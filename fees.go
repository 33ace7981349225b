package sdyn

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) ListFees(ctx context.Context, params ListParams) (*Page[MembershipFee], error) {
	var page Page[MembershipFee]
	if err := c.doGET(ctx, "/fees", params.Values(), &page); err != nil {
		return nil, errors.Wrap(err, "list fees")
	}
	return &page, nil
}

func (c *Client) GetFee(ctx context.Context, id string) (*MembershipFee, error) {
	var fee MembershipFee
	err := c.doGET(ctx, "/fees/"+url.PathEscape(id), nil, &fee)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get fee %s", id)
	}
	return &fee, nil
}

func (c *Client) CreateFee(ctx context.Context, in FeeInput) (*MembershipFee, error) {
	var fee MembershipFee
	if err := c.doJSON(ctx, http.MethodPost, "/fees", in, &fee); err != nil {
		return nil, errors.Wrap(err, "create fee")
	}
	return &fee, nil
}

func (c *Client) UpdateFee(ctx context.Context, id string, in FeeInput) (*MembershipFee, error) {
	var fee MembershipFee
	if err := c.doJSON(ctx, http.MethodPut, "/fees/"+url.PathEscape(id), in, &fee); err != nil {
		return nil, errors.Wrapf(err, "update fee %s", id)
	}
	return &fee, nil
}

// ApproveFee marks a pending fee as paid.
func (c *Client) ApproveFee(ctx context.Context, id string) (*MembershipFee, error) {
	var fee MembershipFee
	if err := c.doJSON(ctx, http.MethodPost, "/fees/"+url.PathEscape(id)+"/approve", nil, &fee); err != nil {
		return nil, errors.Wrapf(err, "approve fee %s", id)
	}
	return &fee, nil
}

func (c *Client) MemberFees(ctx context.Context, memberID string) ([]MembershipFee, error) {
	var fees []MembershipFee
	if err := c.doGET(ctx, "/fees/member/"+url.PathEscape(memberID), nil, &fees); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list member %s fees", memberID)
	}
	return fees, nil
}

// BulkCreateFees creates a pending fee for every member in the input and
// returns how many the backend created.
func (c *Client) BulkCreateFees(ctx context.Context, in BulkFeeInput) (int, error) {
	if len(in.MemberIDs) == 0 {
		return 0, errors.New("bulk create fees: no members")
	}
	var out struct {
		Created int `json:"created"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/fees/bulk", in, &out); err != nil {
		return 0, errors.Wrap(err, "bulk create fees")
	}
	return out.Created, nil
}
