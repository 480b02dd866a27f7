package zentaoapi

import (
	"context"

	"github.com/go-faster/errors"
)

const (
	defaultProductsLimit = 1000
	defaultBugsLimit     = 20
	defaultScanPageSize  = 100
	defaultDetailCap     = 200

	// maxPageFetches bounds one bug scan regardless of what the upstream
	// reports. The pagination metadata is unreliable (total may be absent,
	// returned page size may differ from requested), and without this
	// ceiling a total-less upstream that always returns full pages would
	// never terminate.
	maxPageFetches = 1000
)

// bugPager lazily yields successive pages of one product's bug listing.
// It is finite under the termination policy in FetchAllBugs and is not
// restartable.
type bugPager struct {
	client   *Client
	product  int
	pageSize int
	page     int
	done     bool
}

func newBugPager(client *Client, product, pageSize int) *bugPager {
	if pageSize <= 0 {
		pageSize = defaultScanPageSize
	}
	return &bugPager{client: client, product: product, pageSize: pageSize, page: 1}
}

// next fetches the next page. Returns nil once the natural end of the listing
// has been reached: either the reported total is covered, or a page came back
// shorter than requested on a total-less upstream.
func (p *bugPager) next(ctx context.Context) (*bugsPage, error) {
	if p.done {
		return nil, nil
	}
	page, err := p.client.fetchBugPage(ctx, p.product, p.page, p.pageSize)
	if err != nil {
		p.done = true
		return nil, err
	}

	// Reported page size wins over the requested one when present; the
	// upstream does not always honor the limit parameter.
	reportedSize := page.Limit
	if reportedSize <= 0 {
		reportedSize = p.pageSize
	}

	switch {
	case page.Total > 0 && p.page*reportedSize >= page.Total:
		p.done = true
	case page.Total <= 0 && len(page.Bugs) < p.pageSize:
		p.done = true
	case len(page.Bugs) == 0:
		// A drained listing ends the scan even when the reported total
		// claims more pages exist.
		p.done = true
	default:
		p.page++
	}
	return page, nil
}

// FetchAllBugs retrieves every bug of one product across however many pages
// the upstream reports. maxItems > 0 caps the result and stops the scan
// mid-page once reached. An upstream-reported error on any page aborts the
// whole scan: a partial set would silently under-report downstream counts.
func (c *Client) FetchAllBugs(ctx context.Context, product, pageSize, maxItems int) ([]Bug, error) {
	if product <= 0 {
		return nil, &ValidationError{Param: "product"}
	}

	pager := newBugPager(c, product, pageSize)
	var items []Bug
	for fetches := 0; ; fetches++ {
		if fetches >= maxPageFetches {
			return nil, errors.Errorf("bug scan for product %d exceeded %d pages", product, maxPageFetches)
		}
		page, err := pager.next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return items, nil
		}
		for _, bug := range page.Bugs {
			items = append(items, bug)
			if maxItems > 0 && len(items) >= maxItems {
				return items, nil
			}
		}
	}
}
