package api

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestParseSettlementListOptions(t *testing.T) {
	merchantID := uuid.New()
	req := httptest.NewRequest("GET",
		"/settlements?merchant_id="+merchantID.String()+
			"&from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z&limit=25&offset=50", nil)

	opts, err := parseSettlementListOptions(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.MerchantID == nil || *opts.MerchantID != merchantID {
		t.Fatalf("merchant filter not parsed: %+v", opts.MerchantID)
	}
	if opts.From == nil || opts.From.Year() != 2026 || opts.From.Month() != 1 {
		t.Fatalf("from filter not parsed: %+v", opts.From)
	}
	if opts.To == nil || opts.To.Month() != 2 {
		t.Fatalf("to filter not parsed: %+v", opts.To)
	}
	if opts.Limit != 25 || opts.Offset != 50 {
		t.Fatalf("pagination not parsed: limit=%d offset=%d", opts.Limit, opts.Offset)
	}
}

func TestParseSettlementListOptions_RejectsBadFilters(t *testing.T) {
	cases := []string{
		"/settlements?merchant_id=not-a-uuid",
		"/settlements?from=yesterday",
		"/settlements?to=01/02/2026",
		"/settlements?limit=-1",
		"/settlements?offset=abc",
	}
	for _, url := range cases {
		req := httptest.NewRequest("GET", url, nil)
		if _, err := parseSettlementListOptions(req); err == nil {
			t.Errorf("%s: expected parse error", url)
		}
	}
}

func TestParseSettlementListOptions_EmptyQueryIsValid(t *testing.T) {
	req := httptest.NewRequest("GET", "/settlements", nil)
	opts, err := parseSettlementListOptions(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.MerchantID != nil || opts.From != nil || opts.To != nil || opts.Limit != 0 || opts.Offset != 0 {
		t.Fatalf("expected zero-value options, got %+v", opts)
	}
}
