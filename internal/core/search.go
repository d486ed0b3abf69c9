package core

import (
	"sort"
	"strings"
)

// DayGroup is a set of transactions sharing one calendar day.
type DayGroup struct {
	Date         Date          `json:"date"`
	Transactions []Transaction `json:"transactions"`
}

// SortByDateDesc orders transactions newest day first. Ties keep their
// relative order.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}

// Matches reports whether the transaction matches a free-text query. The
// query is compared case-insensitively against description and category, and
// as a substring of the amount's decimal form. An empty query matches
// everything.
func (t Transaction) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(t.Category), q) ||
		strings.Contains(t.Amount.String(), q)
}

// FilterTransactions returns the transactions matching query, preserving order.
func FilterTransactions(txs []Transaction, query string) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Matches(query) {
			out = append(out, t)
		}
	}
	return out
}

// GroupByDate buckets transactions by calendar day, newest day first.
func GroupByDate(txs []Transaction) []DayGroup {
	index := make(map[string]int)
	var groups []DayGroup
	for _, t := range txs {
		key := t.Date.String()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: t.Date})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date.Time)
	})
	return groups
}
