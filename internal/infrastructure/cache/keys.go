package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cache key domains. A domain prefixes every key so pattern invalidation
// can target one class of derived values.
const (
	DomainBalance   = "balance"
	DomainHistory   = "history"
	DomainInventory = "inventory"
	DomainReport    = "report"
)

// EntityAll is the entity token used when a key covers every entity of a
// tenant rather than a single account or item.
const EntityAll = "all"

// Key builds a deterministic cache key:
//
//	domain:tenant:entity:rangeToken:filterToken
//
// Two logically equivalent requests always produce the same key. The
// entity token is either a concrete id (or id pair) or EntityAll.
func Key(domain string, tenantID uuid.UUID, entity, rangeToken, filterToken string) string {
	if entity == "" {
		entity = EntityAll
	}
	if rangeToken == "" {
		rangeToken = RangeTokenCurrent
	}
	if filterToken == "" {
		filterToken = FilterTokenNone
	}
	return strings.Join([]string{domain, tenantID.String(), entity, rangeToken, filterToken}, ":")
}

// Range and filter sentinels.
const (
	RangeTokenCurrent = "current"
	FilterTokenNone   = "none"
)

const rangeDateLayout = "20060102T150405Z"

// RangeToken normalizes a date range into a stable token. A nil pair
// yields "current"; open endpoints render as "min"/"max".
func RangeToken(from, to *time.Time) string {
	if from == nil && to == nil {
		return RangeTokenCurrent
	}
	f, t := "min", "max"
	if from != nil {
		f = from.UTC().Format(rangeDateLayout)
	}
	if to != nil {
		t = to.UTC().Format(rangeDateLayout)
	}
	return f + "-" + t
}

// AsOfToken normalizes an optional as-of instant.
func AsOfToken(asOf *time.Time) string {
	if asOf == nil {
		return RangeTokenCurrent
	}
	return asOf.UTC().Format(rangeDateLayout)
}

// FilterToken canonicalizes an arbitrary filter value. The value is
// marshaled to JSON, lifted into a map, and re-rendered with sorted keys
// so field order and equivalent representations cannot diverge into
// distinct cache keys. Nil and empty filters yield "none".
func FilterToken(filter any) string {
	if filter == nil {
		return FilterTokenNone
	}

	raw, err := json.Marshal(filter)
	if err != nil {
		// Unserializable filters fall back to their Go representation;
		// still deterministic for a given type.
		return fmt.Sprintf("%+v", filter)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not an object (scalar or array); the raw form is already
		// canonical.
		token := string(raw)
		if token == "null" {
			return FilterTokenNone
		}
		return token
	}
	if len(m) == 0 {
		return FilterTokenNone
	}

	keys := make([]string, 0, len(m))
	for k, v := range m {
		if string(v) == "null" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return FilterTokenNone
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(m[k])
	}
	return b.String()
}

// ItemLocationEntity renders the composite entity token for an
// item/location pair.
func ItemLocationEntity(itemID, locationID uuid.UUID) string {
	return itemID.String() + "/" + locationID.String()
}

// Invalidation tags. Every cached aggregate is tagged with at least its
// tenant and its account or item; mutating operations invalidate by these
// tags synchronously before returning.
func TenantTag(tenantID uuid.UUID) string {
	return "tenant:" + tenantID.String()
}

// AccountTag returns the invalidation tag for a ledger account.
func AccountTag(accountID uuid.UUID) string {
	return "account:" + accountID.String()
}

// ItemTag returns the invalidation tag for an inventory item.
func ItemTag(itemID uuid.UUID) string {
	return "item:" + itemID.String()
}

// LocationTag returns the invalidation tag for a stock location.
func LocationTag(locationID uuid.UUID) string {
	return "location:" + locationID.String()
}
