package domain

import (
	"math"
	"sort"
	"strings"
)

// TransactionGroup is a day bucket of records keyed by effective date.
// It is derived on demand and never stored.
type TransactionGroup struct {
	DateKey    string        `json:"dateKey"`
	Time       int64         `json:"time"`
	Items      []Transaction `json:"items"`
	TotalMinor int64         `json:"totalMinor"`
}

// Total is the signed day total in currency units.
func (g TransactionGroup) Total() float64 {
	return FromMinorUnits(g.TotalMinor)
}

// GroupByDay buckets records by effective calendar day, newest day first.
// Items keep their input order. Records with unreadable dates share a
// bucket with an empty key, sorted last.
func GroupByDay(list []Transaction) []TransactionGroup {
	index := make(map[string]int)
	groups := make([]TransactionGroup, 0)

	for _, t := range list {
		key, ts := "", int64(0)
		if d, err := ParseDay(t.EffectiveDate()); err == nil {
			key, ts = DayKey(d), DayStartMillis(d)
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, TransactionGroup{DateKey: key, Time: ts})
		}
		groups[i].Items = append(groups[i].Items, t)
		groups[i].TotalMinor += t.Contribution()
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if (groups[a].DateKey == "") != (groups[b].DateKey == "") {
			return groups[b].DateKey == ""
		}
		return groups[a].Time > groups[b].Time
	})
	return groups
}

// Balance is the signed sum of the records' contributions, in cents.
func Balance(list []Transaction) int64 {
	var total int64
	for _, t := range list {
		total += t.Contribution()
	}
	return total
}

// SortByDateDesc orders records by effective day, newest first. Ties keep their order.
// Records with unreadable dates go last.
func SortByDateDesc(list []Transaction) {
	type keyed struct {
		ts int64
		t  Transaction
	}
	rows := make([]keyed, len(list))
	for i, t := range list {
		ts, err := DayStartTimestamp(t.EffectiveDate())
		if err != nil {
			ts = math.MinInt64
		}
		rows[i] = keyed{ts: ts, t: t}
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].ts > rows[b].ts })
	for i, r := range rows {
		list[i] = r.t
	}
}

// Query filters the in-memory ledger the way the search box does.
type Query struct {
	Text             string
	Type             TransactionType
	Status           Status
	IncludeDismissed bool
}

// Matches reports whether t passes the query.
func (q Query) Matches(t Transaction) bool {
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if !q.IncludeDismissed && t.Status == StatusCancelled && t.Locked {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), text) ||
		strings.Contains(strings.ToLower(string(t.Type)), text)
}

// ListFilter is the backend-side filter for FetchAll.
type ListFilter struct {
	Query  string
	Type   TransactionType
	Status Status
	Sort   string
	Order  string
	Page   int
	Limit  int
}
