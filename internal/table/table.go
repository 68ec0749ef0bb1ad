// Package table is the in-memory tabular data engine shared by the items
// and reviews views: multi-field filtering, stable keyed sorting, and the
// KPI/group-by aggregations feeding the charts. Everything here is a pure
// function over a row slice.
package table

import (
	"sort"
	"strings"
	"time"

	"sentimetrics/internal/datefmt"
)

// Direction is a sort direction. None means the filtered order is kept
// untouched (identity, not a re-sort).
type Direction int

const (
	None Direction = iota
	Asc
	Desc
)

func (d Direction) String() string {
	switch d {
	case Asc:
		return "asc"
	case Desc:
		return "desc"
	default:
		return "none"
	}
}

// ParseDirection maps the wire form back to a Direction. Unknown input
// falls back to None.
func ParseDirection(s string) Direction {
	switch s {
	case "asc":
		return Asc
	case "desc":
		return Desc
	default:
		return None
	}
}

// Sort is the single active sort of a table.
type Sort struct {
	Key string    `json:"key"`
	Dir Direction `json:"-"`
}

// Predicate reports whether a row passes one filter. A nil Predicate
// means the filter is unset and never excludes a row.
type Predicate[T any] func(T) bool

// Filter keeps rows that pass every non-nil predicate (logical AND).
func Filter[T any](rows []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		pass := true
		for _, p := range preds {
			if p != nil && !p(r) {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, r)
		}
	}
	return out
}

// Text builds a case-insensitive substring predicate over the given
// searchable fields. An empty query yields a nil predicate.
func Text[T any](query string, fields ...func(T) string) Predicate[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return func(r T) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f(r)), q) {
				return true
			}
		}
		return false
	}
}

// Equals builds a categorical equality predicate. The empty string and
// the "all" sentinel yield a nil predicate.
func Equals[T any](value string, field func(T) string) Predicate[T] {
	if value == "" || value == "all" {
		return nil
	}
	return func(r T) bool {
		return field(r) == value
	}
}

// DateRange builds an inclusive [from, to] predicate over a timestamp
// field. from is taken at start of day, to at 23:59:59.999 local time; a
// missing bound imposes no constraint on that side. Both bounds absent
// yields a nil predicate. Rows whose timestamp cannot be parsed fail any
// active bound.
func DateRange[T any](from, to string, field func(T) string) Predicate[T] {
	var lo, hi time.Time
	var hasLo, hasHi bool

	if from != "" {
		if d, ok := datefmt.Parse(from); ok {
			lo = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
			hasLo = true
		}
	}
	if to != "" {
		if d, ok := datefmt.Parse(to); ok {
			hi = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999_000_000, time.Local)
			hasHi = true
		}
	}
	if !hasLo && !hasHi {
		return nil
	}

	return func(r T) bool {
		ts, ok := datefmt.Parse(field(r))
		if !ok {
			return false
		}
		if hasLo && ts.Before(lo) {
			return false
		}
		if hasHi && ts.After(hi) {
			return false
		}
		return true
	}
}

// Key is a derived comparison key: numeric keys compare numerically,
// everything else as case-sensitive strings.
type Key struct {
	Num     float64
	Str     string
	Numeric bool
}

func NumKey(v float64) Key  { return Key{Num: v, Numeric: true} }
func StrKey(s string) Key   { return Key{Str: s} }
func TimeKey(ts string) Key { return Key{Num: datefmt.UnixMilli(ts), Numeric: true} }

func (k Key) compare(o Key) int {
	if k.Numeric && o.Numeric {
		switch {
		case k.Num < o.Num:
			return -1
		case k.Num > o.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(k.Str, o.Str)
}

// SortBy stable-sorts a copy of rows by the key derived for s.Key. Ties
// preserve relative input order. Direction None returns the input slice
// unchanged.
func SortBy[T any](rows []T, s Sort, key func(T, string) Key) []T {
	if s.Dir == None {
		return rows
	}

	clone := make([]T, len(rows))
	copy(clone, rows)

	dir := 1
	if s.Dir == Desc {
		dir = -1
	}
	sort.SliceStable(clone, func(i, j int) bool {
		return key(clone[i], s.Key).compare(key(clone[j], s.Key))*dir < 0
	})
	return clone
}

// CycleItems advances the items table sort. Switching to a new key starts
// ascending; clicking the active key flips between asc and desc. The
// items table never returns to the unsorted state.
func CycleItems(prev Sort, key string) Sort {
	if prev.Key != key {
		return Sort{Key: key, Dir: Asc}
	}
	if prev.Dir == Asc {
		return Sort{Key: key, Dir: Desc}
	}
	return Sort{Key: key, Dir: Asc}
}

// CycleReviews advances the reviews table sort: asc, desc, none, asc...
// Unlike the items table this one does pass through the unsorted state.
func CycleReviews(prev Sort, key string) Sort {
	if prev.Key != key {
		return Sort{Key: key, Dir: Asc}
	}
	switch prev.Dir {
	case Asc:
		return Sort{Key: key, Dir: Desc}
	case Desc:
		return Sort{Key: key, Dir: None}
	default:
		return Sort{Key: key, Dir: Asc}
	}
}

// NamedCount is one bucket of a group-by-count table.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// KPI is the aggregate block rendered above the items table.
type KPI struct {
	Total      int          `json:"total"`
	Active     int          `json:"active"`
	Inactive   int          `json:"inactive"`
	ChannelPie []NamedCount `json:"channelPie"`
	TopOutlet  []NamedCount `json:"topOutlet"`
}

// UnknownBucket collects rows whose reference field is missing.
const UnknownBucket = "Unknown"

// TopN is the outlet leaderboard length.
const TopN = 10

// counter is an insertion-ordered string counter.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if name == "" {
		name = UnknownBucket
	}
	if _, seen := c.counts[name]; !seen {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) entries() []NamedCount {
	out := make([]NamedCount, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, NamedCount{Name: name, Value: c.counts[name]})
	}
	return out
}

// Aggregate derives the KPI block: total/active/inactive counts plus the
// per-channel distribution and the top outlets by row count. Group order
// follows first-encountered insertion order; the top-outlet table is
// sorted by descending count (ties keep insertion order) and truncated to
// TopN. An empty row set yields zero counts and empty tables.
func Aggregate[T any](rows []T, active func(T) bool, channelName, outletName func(T) string) KPI {
	kpi := KPI{Total: len(rows)}

	channels := newCounter()
	outlets := newCounter()
	for _, r := range rows {
		if active(r) {
			kpi.Active++
		}
		channels.add(channelName(r))
		outlets.add(outletName(r))
	}
	kpi.Inactive = kpi.Total - kpi.Active

	kpi.ChannelPie = channels.entries()

	top := outlets.entries()
	sort.SliceStable(top, func(i, j int) bool { return top[i].Value > top[j].Value })
	if len(top) > TopN {
		top = top[:TopN]
	}
	kpi.TopOutlet = top

	return kpi
}
