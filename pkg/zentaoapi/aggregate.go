package zentaoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
)

// StatsRow is one product in the bug statistics report.
type StatsRow struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	TotalBugs      int    `json:"totalBugs"`
	UnresolvedBugs int    `json:"unresolvedBugs"`
	ClosedBugs     int    `json:"closedBugs"`
	FixedBugs      int    `json:"fixedBugs"`
}

// StatsReport aggregates per-product bug totals. Total is always the sum of
// TotalBugs over the included rows.
type StatsReport struct {
	Total    int        `json:"total"`
	Products []StatsRow `json:"products"`
}

// BugStats reads the upstream's denormalized per-product bug counters from a
// single product-listing page (capped at limit) and sums them. Products with
// zero bugs are excluded unless includeZero. Fast but only as accurate as the
// upstream's own cache: no individual bug records are scanned.
func (c *Client) BugStats(ctx context.Context, includeZero bool, limit int) (*Result, error) {
	if limit <= 0 {
		limit = defaultProductsLimit
	}
	raw, err := c.Request(ctx, http.MethodGet, "/api.php/v1/products", pageQuery(1, limit), nil)
	if err != nil {
		return nil, err
	}
	var listing productsPage
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, &ParseError{Snippet: snippet(raw)}
	}
	if listing.Error != "" {
		return passthroughFailure(listing.Error, raw), nil
	}

	report := StatsReport{Products: []StatsRow{}}
	for _, p := range listing.Products {
		if !includeZero && p.TotalBugs == 0 {
			continue
		}
		report.Total += p.TotalBugs
		report.Products = append(report.Products, StatsRow{
			ID:             p.ID,
			Name:           p.Name,
			TotalBugs:      p.TotalBugs,
			UnresolvedBugs: p.UnresolvedBugs,
			ClosedBugs:     p.ClosedBugs,
			FixedBugs:      p.FixedBugs,
		})
	}
	return Success(report), nil
}

// Scope selects which identity role a "my bugs" query filters on.
const (
	ScopeAssigned = "assigned"
	ScopeOpened   = "opened"
	ScopeResolved = "resolved"
	ScopeAll      = "all"
)

// MyBugsOptions are the resolved inputs of a MyBugs call. Zero values select
// the documented defaults.
type MyBugsOptions struct {
	Account        string   // default: the session's own login
	Scope          string   // assigned | opened | resolved | all; default assigned
	Status         []string // normalized set; empty disables status filtering
	ProductIDs     []int    // allow-list; empty means all products
	IncludeZero    bool     // keep product rows with zero matches
	PerPage        int      // bug scan page size; default 100
	MaxItems       int      // detail list cap; default 200
	IncludeDetails bool     // collect per-bug detail records
}

// ParseStatusFilter resolves the status argument, which arrives as a string
// (comma or pipe delimited) or a list of strings. The literal "all", or an
// empty set, disables status filtering and yields nil.
func ParseStatusFilter(v any) []string {
	var parts []string
	switch s := v.(type) {
	case nil:
	case string:
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })
	case []string:
		parts = s
	case []any:
		for _, item := range s {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
	}
	seen := make(map[string]bool)
	var set []string
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if p == "all" {
			return nil
		}
		if !seen[p] {
			seen[p] = true
			set = append(set, p)
		}
	}
	return set
}

// MineRow is one product in the "my bugs" report.
type MineRow struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	TotalBugs int    `json:"totalBugs"`
	MyBugs    int    `json:"myBugs"`
}

// BugDetail is the fixed per-bug projection returned when details were
// requested. Pri and severity pass through raw: the upstream sometimes sends
// numbers, sometimes strings.
type BugDetail struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	Product    int             `json:"product"`
	Status     string          `json:"status"`
	Pri        json.RawMessage `json:"pri,omitempty"`
	Severity   json.RawMessage `json:"severity,omitempty"`
	AssignedTo json.RawMessage `json:"assignedTo,omitempty"`
	OpenedDate string          `json:"openedDate,omitempty"`
}

// MineReport is the output of a MyBugs call. Total counts every match across
// all products; only the Bugs detail list is capped.
type MineReport struct {
	Account  string      `json:"account"`
	Scope    string      `json:"scope"`
	Status   string      `json:"status"`
	Total    int         `json:"total"`
	Products []MineRow   `json:"products"`
	Bugs     []BugDetail `json:"bugs"`
}

// MyBugs scans every candidate product's full bug listing and counts the bugs
// whose scope-selected person fields refer to the target account. Filtering
// happens client-side across the whole set: the upstream bug-list endpoint
// cannot filter by assignee. Products and pages are fetched strictly
// sequentially, so product order follows the upstream listing.
func (c *Client) MyBugs(ctx context.Context, opts MyBugsOptions) (*Result, error) {
	account := NormalizeAccount(opts.Account)
	if account == "" {
		account = NormalizeAccount(c.account)
	}

	scope := opts.Scope
	if scope == "" {
		scope = ScopeAssigned
	}
	switch scope {
	case ScopeAssigned, ScopeOpened, ScopeResolved, ScopeAll:
	default:
		return nil, errors.Errorf("unknown scope %q (want assigned|opened|resolved|all)", scope)
	}

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultScanPageSize
	}
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = defaultDetailCap
	}

	statusSet := make(map[string]bool, len(opts.Status))
	for _, s := range opts.Status {
		statusSet[s] = true
	}
	statusEcho := ScopeAll
	if len(opts.Status) > 0 {
		statusEcho = strings.Join(opts.Status, ",")
	}

	allowed := make(map[int]bool, len(opts.ProductIDs))
	for _, id := range opts.ProductIDs {
		allowed[id] = true
	}

	raw, err := c.Request(ctx, http.MethodGet, "/api.php/v1/products", pageQuery(1, defaultProductsLimit), nil)
	if err != nil {
		return nil, err
	}
	var listing productsPage
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, &ParseError{Snippet: snippet(raw)}
	}
	if listing.Error != "" {
		return passthroughFailure(listing.Error, raw), nil
	}

	report := MineReport{
		Account:  account,
		Scope:    scope,
		Status:   statusEcho,
		Products: []MineRow{},
		Bugs:     []BugDetail{},
	}

	for _, product := range listing.Products {
		if len(allowed) > 0 && !allowed[product.ID] {
			continue
		}

		bugs, err := c.FetchAllBugs(ctx, product.ID, perPage, 0)
		if err != nil {
			// A partial scan would silently under-report; abort the
			// whole aggregation instead.
			return nil, err
		}

		matched := 0
		for _, bug := range bugs {
			if len(statusSet) > 0 && !statusSet[strings.ToLower(strings.TrimSpace(bug.Status))] {
				continue
			}
			if !matchesScope(bug, scope, account) {
				continue
			}
			matched++
			if opts.IncludeDetails && len(report.Bugs) < maxItems {
				report.Bugs = append(report.Bugs, BugDetail{
					ID:         bug.ID,
					Title:      bug.Title,
					Product:    product.ID,
					Status:     bug.Status,
					Pri:        bug.Pri,
					Severity:   bug.Severity,
					AssignedTo: bug.AssignedTo,
					OpenedDate: bug.OpenedDate,
				})
			}
		}

		report.Total += matched
		if matched == 0 && !opts.IncludeZero {
			continue
		}
		report.Products = append(report.Products, MineRow{
			ID:        product.ID,
			Name:      product.Name,
			TotalBugs: product.TotalBugs,
			MyBugs:    matched,
		})
	}

	return Success(report), nil
}

// matchesScope applies scope-aware identity matching: every scope checks
// exactly its own person field, and "all" checks any of the three.
func matchesScope(bug Bug, scope, account string) bool {
	switch scope {
	case ScopeAssigned:
		return MatchesAccount(bug.AssignedTo, account)
	case ScopeOpened:
		return MatchesAccount(bug.OpenedBy, account)
	case ScopeResolved:
		return MatchesAccount(bug.ResolvedBy, account)
	case ScopeAll:
		return MatchesAccount(bug.AssignedTo, account) ||
			MatchesAccount(bug.OpenedBy, account) ||
			MatchesAccount(bug.ResolvedBy, account)
	}
	return false
}

// passthroughFailure rebuilds the raw upstream payload for a status-0
// envelope.
func passthroughFailure(msg string, raw json.RawMessage) *Result {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return UpstreamFailure(msg, nil)
	}
	return UpstreamFailure(msg, payload)
}
