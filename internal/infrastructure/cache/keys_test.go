package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKey_Format(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	accountID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	key := Key(DomainBalance, tenantID, accountID.String(), RangeTokenCurrent, FilterTokenNone)
	assert.Equal(t,
		"balance:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222:current:none",
		key)
}

func TestKey_Defaults(t *testing.T) {
	tenantID := uuid.New()

	key := Key(DomainReport, tenantID, "", "", "")
	assert.Equal(t, "report:"+tenantID.String()+":all:current:none", key)
}

func TestKey_Deterministic(t *testing.T) {
	tenantID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	a := Key(DomainHistory, tenantID, "acct", RangeToken(&from, &to), FilterToken(map[string]any{"currency": "USD"}))
	b := Key(DomainHistory, tenantID, "acct", RangeToken(&from, &to), FilterToken(map[string]any{"currency": "USD"}))
	assert.Equal(t, a, b)
}

func TestRangeToken(t *testing.T) {
	from := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	to := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from *time.Time
		to   *time.Time
		want string
	}{
		{"both nil", nil, nil, "current"},
		{"closed", &from, &to, "20260115T093000Z-20260215T000000Z"},
		{"open start", nil, &to, "min-20260215T000000Z"},
		{"open end", &from, nil, "20260115T093000Z-max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RangeToken(tt.from, tt.to))
		})
	}
}

func TestRangeToken_NormalizesZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	local := time.Date(2026, 1, 15, 4, 30, 0, 0, est)
	utc := local.UTC()

	assert.Equal(t, RangeToken(&utc, nil), RangeToken(&local, nil),
		"the same instant in different zones yields the same token")
}

func TestAsOfToken(t *testing.T) {
	assert.Equal(t, "current", AsOfToken(nil))

	asOf := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260630T120000Z", AsOfToken(&asOf))
}

func TestFilterToken_FieldOrderIndependent(t *testing.T) {
	type filterA struct {
		Currency   string `json:"currency,omitempty"`
		Reconciled *bool  `json:"reconciled,omitempty"`
	}
	type filterB struct {
		Reconciled *bool  `json:"reconciled,omitempty"`
		Currency   string `json:"currency,omitempty"`
	}

	yes := true
	a := FilterToken(filterA{Currency: "USD", Reconciled: &yes})
	b := FilterToken(filterB{Reconciled: &yes, Currency: "USD"})
	assert.Equal(t, a, b, "equivalent filters with different field order share a token")
}

func TestFilterToken_EmptyForms(t *testing.T) {
	type filter struct {
		Currency string `json:"currency,omitempty"`
	}

	assert.Equal(t, FilterTokenNone, FilterToken(nil))
	assert.Equal(t, FilterTokenNone, FilterToken(struct{}{}))
	assert.Equal(t, FilterTokenNone, FilterToken(filter{}))
	assert.Equal(t, FilterTokenNone, FilterToken(map[string]any{}))
}

func TestFilterToken_DropsNullFields(t *testing.T) {
	type filter struct {
		Currency   *string `json:"currency"`
		Reconciled *bool   `json:"reconciled"`
	}

	usd := "USD"
	withNull := FilterToken(filter{Currency: &usd})
	withoutField := FilterToken(map[string]any{"currency": "USD"})
	assert.Equal(t, withoutField, withNull, "explicit null and absent field share a token")
}

func TestFilterToken_Content(t *testing.T) {
	token := FilterToken(map[string]any{
		"reconciled": true,
		"currency":   "EUR",
	})
	assert.Equal(t, `currency="EUR",reconciled=true`, token)
}

func TestItemLocationEntity(t *testing.T) {
	itemID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	locationID := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	assert.Equal(t,
		"33333333-3333-3333-3333-333333333333/44444444-4444-4444-4444-444444444444",
		ItemLocationEntity(itemID, locationID))
}

func TestTags(t *testing.T) {
	id := uuid.MustParse("55555555-5555-5555-5555-555555555555")

	assert.Equal(t, "tenant:55555555-5555-5555-5555-555555555555", TenantTag(id))
	assert.Equal(t, "account:55555555-5555-5555-5555-555555555555", AccountTag(id))
	assert.Equal(t, "item:55555555-5555-5555-5555-555555555555", ItemTag(id))
	assert.Equal(t, "location:55555555-5555-5555-5555-555555555555", LocationTag(id))
}
