package zentaoapi

import "encoding/json"

// Result is the uniform envelope returned by every tool.
// status 1 means the upstream answered; status 0 carries the upstream's own
// error text. Local failures (auth, parse, validation) are never wrapped in
// this envelope — they surface as Go errors so the caller can tell "upstream
// says no data" apart from "tool broke".
type Result struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result any    `json:"result"`
}

// Success wraps an upstream payload in a status-1 envelope.
func Success(payload any) *Result {
	return &Result{Status: 1, Msg: "success", Result: payload}
}

// UpstreamFailure wraps an upstream-reported error in a status-0 envelope.
// The original payload is preserved for diagnosis; an empty list stands in
// when the upstream sent nothing usable.
func UpstreamFailure(msg string, payload any) *Result {
	if msg == "" {
		msg = "error"
	}
	if payload == nil {
		payload = []any{}
	}
	return &Result{Status: 0, Msg: msg, Result: payload}
}

// Product is one row of the upstream product listing. The bug counters are
// denormalized by the upstream and may be absent, in which case they decode
// to zero.
type Product struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	TotalBugs      int    `json:"totalBugs"`
	UnresolvedBugs int    `json:"unresolvedBugs"`
	ClosedBugs     int    `json:"closedBugs"`
	FixedBugs      int    `json:"fixedBugs"`
}

// Bug is one upstream bug record. The three person fields are untyped
// upstream data (a login string, a user record, or a list of either) and are
// kept raw for the identity matcher to interpret.
type Bug struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	Product    int             `json:"product"`
	Status     string          `json:"status"`
	Pri        json.RawMessage `json:"pri,omitempty"`
	Severity   json.RawMessage `json:"severity,omitempty"`
	AssignedTo json.RawMessage `json:"assignedTo,omitempty"`
	OpenedBy   json.RawMessage `json:"openedBy,omitempty"`
	ResolvedBy json.RawMessage `json:"resolvedBy,omitempty"`
	OpenedDate string          `json:"openedDate,omitempty"`
}

// productsPage is the decoded body of GET /api.php/v1/products.
type productsPage struct {
	Page     int       `json:"page"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Products []Product `json:"products"`
	Error    string    `json:"error"`
}

// bugsPage is the decoded body of GET /api.php/v1/bugs. Total and Limit are
// unreliable: either may be zero/absent, and Limit may differ from the
// requested page size.
type bugsPage struct {
	Page  int    `json:"page"`
	Total int    `json:"total"`
	Limit int    `json:"limit"`
	Bugs  []Bug  `json:"bugs"`
	Error string `json:"error"`
}
