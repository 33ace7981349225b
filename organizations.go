package sdyn

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) ListOrganizations(ctx context.Context, params ListParams) (*Page[Organization], error) {
	var page Page[Organization]
	if err := c.doGET(ctx, "/organizations", params.Values(), &page); err != nil {
		return nil, errors.Wrap(err, "list organizations")
	}
	return &page, nil
}

func (c *Client) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := c.doGET(ctx, "/organizations/"+url.PathEscape(id), nil, &org)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get organization %s", id)
	}
	return &org, nil
}

func (c *Client) CreateOrganization(ctx context.Context, in OrganizationInput) (*Organization, error) {
	var org Organization
	if err := c.doJSON(ctx, http.MethodPost, "/organizations", in, &org); err != nil {
		return nil, errors.Wrap(err, "create organization")
	}
	return &org, nil
}

func (c *Client) UpdateOrganization(ctx context.Context, id string, in OrganizationInput) (*Organization, error) {
	var org Organization
	if err := c.doJSON(ctx, http.MethodPut, "/organizations/"+url.PathEscape(id), in, &org); err != nil {
		return nil, errors.Wrapf(err, "update organization %s", id)
	}
	return &org, nil
}

func (c *Client) DeleteOrganization(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/organizations/"+url.PathEscape(id), nil, nil); err != nil {
		return errors.Wrapf(err, "delete organization %s", id)
	}
	return nil
}

// OrganizationStats returns nil when the organization does not exist.
func (c *Client) OrganizationStats(ctx context.Context, id string) (*OrganizationStats, error) {
	var stats OrganizationStats
	err := c.doGET(ctx, "/organizations/"+url.PathEscape(id)+"/stats", nil, &stats)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get organization %s stats", id)
	}
	return &stats, nil
}

func (c *Client) OrganizationMembers(ctx context.Context, id string, params ListParams) (*Page[Member], error) {
	var page Page[Member]
	if err := c.doGET(ctx, "/organizations/"+url.PathEscape(id)+"/members", params.Values(), &page); err != nil {
		return nil, errors.Wrapf(err, "list organization %s members", id)
	}
	return &page, nil
}
