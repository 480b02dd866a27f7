package zentaoapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// fakeTracker is an in-memory ZenTao instance for tests. It serves the token
// exchange, the product listing, and a paginated bug listing per product.
type fakeTracker struct {
	products []map[string]any
	bugs     map[int][]map[string]any

	bugsErr     string // when set, every bug page answers {"error": bugsErr}
	productsErr string // when set, the product listing answers with an error field
	omitTotal   bool   // drop the total field from bug pages

	tokenCalls atomic.Int64
	bugCalls   atomic.Int64
}

func (f *fakeTracker) client(t *testing.T) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api.php/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		var creds struct {
			Account  string `json:"account"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Account == "" {
			writeJSON(w, map[string]any{"error": "account or password wrong"})
			return
		}
		writeJSON(w, map[string]any{"token": "test-token"})
	})
	mux.HandleFunc("GET /api.php/v1/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Token") != "test-token" {
			writeJSON(w, map[string]any{"error": "invalid token"})
			return
		}
		if f.productsErr != "" {
			writeJSON(w, map[string]any{"error": f.productsErr})
			return
		}
		writeJSON(w, map[string]any{
			"page":     1,
			"total":    len(f.products),
			"limit":    queryInt(r, "limit", 1000),
			"products": f.products,
		})
	})
	mux.HandleFunc("GET /api.php/v1/bugs", func(w http.ResponseWriter, r *http.Request) {
		f.bugCalls.Add(1)
		if f.bugsErr != "" {
			writeJSON(w, map[string]any{"error": f.bugsErr})
			return
		}
		product := queryInt(r, "product", 0)
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)

		all := f.bugs[product]
		start := (page - 1) * limit
		if start > len(all) {
			start = len(all)
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}

		payload := map[string]any{
			"page":  page,
			"limit": limit,
			"bugs":  all[start:end],
		}
		if !f.omitTotal {
			payload["total"] = len(all)
		}
		writeJSON(w, payload)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "alice", "secret")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func bugRecord(id int, status, assignedTo string) map[string]any {
	return map[string]any{
		"id":         id,
		"title":      "bug " + strconv.Itoa(id),
		"status":     status,
		"assignedTo": assignedTo,
	}
}
