package grantdata

import (
	"encoding/json"
)

// Wire types for the remote grant-data API. List endpoints wrap results in a
// DRF-style envelope with count/next/previous.

type OrgSummary struct {
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

// CurrencyStats is the per-currency aggregate block attached to an
// organisation's funder or recipient role.
type CurrencyStats struct {
	Count       int     `json:"count"`
	MinAmount   float64 `json:"min_amount"`
	MaxAmount   float64 `json:"max_amount"`
	AvgAmount   float64 `json:"avg_amount"`
	TotalAmount float64 `json:"total_amount"`
}

// OrgDetail carries the organisation's aggregate statistics. A nil map means
// the organisation has no grants in that role.
type OrgDetail struct {
	OrgID     string                   `json:"org_id"`
	Name      string                   `json:"name"`
	Funder    map[string]CurrencyStats `json:"funder,omitempty"`
	Recipient map[string]CurrencyStats `json:"recipient,omitempty"`
}

type OrgRef struct {
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

type GrantClassification struct {
	Vocabulary string `json:"vocabulary,omitempty"`
	Code       string `json:"code"`
	Title      string `json:"title,omitempty"`
}

type GrantLocation struct {
	Name    string `json:"name"`
	GeoCode string `json:"geo_code,omitempty"`
}

// GrantRecord is one raw grant as served by the remote API. Raw retains the
// exact source payload for traceability.
type GrantRecord struct {
	GrantID         string                `json:"grant_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	AmountAwarded   json.Number           `json:"amount_awarded"`
	Currency        string                `json:"currency"`
	AwardDate       string                `json:"award_date"`
	Funders         []OrgRef              `json:"funders"`
	Recipients      []OrgRef              `json:"recipients"`
	Classifications []GrantClassification `json:"classifications,omitempty"`
	Locations       []GrantLocation       `json:"locations,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type OrgPage struct {
	Count         int
	HasNext       bool
	NextOffset    int
	Organisations []OrgSummary
}

type GrantPage struct {
	Count      int
	HasNext    bool
	NextOffset int
	Grants     []GrantRecord
}

type listEnvelope struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}
