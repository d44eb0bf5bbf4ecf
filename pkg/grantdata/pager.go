package grantdata

import "context"

// Pagers re-page list endpoints automatically. They are finite and
// non-restartable: Next returns a nil page once the remote cursor signals
// there is nothing further.

type OrganisationPager struct {
	client *Client
	limit  int
	offset int
	done   bool
}

// Organisations iterates the whole organisation directory in pages of limit.
func (c *Client) Organisations(limit int) *OrganisationPager {
	return &OrganisationPager{client: c, limit: limit}
}

func (p *OrganisationPager) Next(ctx context.Context) ([]OrgSummary, error) {
	if p.done {
		return nil, nil
	}
	page, err := p.client.ListOrganisations(ctx, p.limit, p.offset)
	if err != nil {
		return nil, err
	}
	p.offset = page.NextOffset
	if !page.HasNext {
		p.done = true
	}
	return page.Organisations, nil
}

type GrantPager struct {
	client *Client
	orgID  string
	limit  int
	offset int
	done   bool
}

// GrantsMade iterates all grants made by one organisation in pages of limit.
func (c *Client) GrantsMade(orgID string, limit int) *GrantPager {
	return &GrantPager{client: c, orgID: orgID, limit: limit}
}

func (p *GrantPager) Next(ctx context.Context) ([]GrantRecord, error) {
	if p.done {
		return nil, nil
	}
	page, err := p.client.ListGrantsMade(ctx, p.orgID, p.limit, p.offset)
	if err != nil {
		return nil, err
	}
	p.offset = page.NextOffset
	if !page.HasNext {
		p.done = true
	}
	return page.Grants, nil
}
