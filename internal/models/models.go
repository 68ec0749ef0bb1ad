package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Brand is the tenant-scoping entity. Every data fetch is implicitly
// filtered to the currently active brand.
type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON tolerates numeric ids from the backend; the rest of the
// system treats brand ids as strings.
func (b *Brand) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Name = raw.Name
	b.ID = rawID(raw.ID)
	return nil
}

// User is the authenticated identity attached to the session.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const RoleSuperadmin = "superadmin"

// Channel is a delivery platform (GrabFood, GoFood, ...) an item or
// review is associated with.
type Channel struct {
	ID   int64  `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// Outlet is a storefront location under a brand.
type Outlet struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status int    `json:"status"`
}

// Product is one synced item row. Timestamps stay as the ISO strings the
// backend sends; parsing happens at the formatting/filtering boundary.
type Product struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Price     *Price   `json:"price"`
	Status    int      `json:"status"` // 1 active, 0 inactive
	BrandID   int64    `json:"brandId"`
	OutletID  int64    `json:"outletId"`
	Outlet    *Outlet  `json:"outlet"`
	Channel   *Channel `json:"channel"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// Price accepts a number, a numeric string, or null from the backend.
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// non-numeric string coerces to zero, same as the backend's
			// other consumers
			*p = 0
			return nil
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Price(f)
	return nil
}

// Value returns the numeric price, zero when absent.
func (p *Price) Value() float64 {
	if p == nil {
		return 0
	}
	return float64(*p)
}

// Review is one customer review row.
type Review struct {
	ID             int64    `json:"id"`
	OutletID       int64    `json:"outletId"`
	ChannelID      int64    `json:"channelId"`
	Rating         int      `json:"rating"`
	Message        string   `json:"message"`
	CreatedAt      string   `json:"createdAt"`
	OrderedProduct string   `json:"orderedProduct,omitempty"`
	CustomerName   string   `json:"customerName,omitempty"`
	Outlet         *Outlet  `json:"outlet"`
	Channel        *Channel `json:"channel"`
}

// Company groups brands; only superadmins manage companies.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Company) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.ID = rawID(raw.ID)
	return nil
}

// NewUser is the payload for superadmin user creation.
type NewUser struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}

// ChannelSummary is one per-channel block of the dashboard summary.
type ChannelSummary struct {
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Total        int    `json:"total"`
	Open         int    `json:"open"`
	Close        int    `json:"close"`
	ItemActive   int    `json:"itemActive"`
	ItemInactive int    `json:"itemInactive"`
}

// OutletRef is the minimal outlet shape used in dashboard lists.
type OutletRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DashboardSummary is the upstream dashboard payload. Chart series stay
// opaque JSON; the chart renderer is a black box consuming arrays of
// named numeric series.
type DashboardSummary struct {
	Channels      []ChannelSummary `json:"channels,omitempty"`
	RatingHistory json.RawMessage  `json:"ratingHistory,omitempty"`
	OutletStatus  json.RawMessage  `json:"outletStatus,omitempty"`
	OpenOutlets   []OutletRef      `json:"openOutlets,omitempty"`
	ClosedOutlets []OutletRef      `json:"closedOutlets,omitempty"`
}

// rawID renders a JSON id token (string or number) as a string.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
