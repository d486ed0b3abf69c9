package core

import "testing"

func TestTransactionMatches(t *testing.T) {
	tr := Transaction{Description: "Starbucks Coffee", Category: "Food & Drink", Amount: Money{Cents: 1250}}
	cases := []struct {
		q    string
		want bool
	}{
		{"", true},
		{"starbucks", true},
		{"FOOD", true},
		{"12.5", true},
		{"12.50", false},
		{"rent", false},
	}
	for i, tc := range cases {
		if got := tr.Matches(tc.q); got != tc.want {
			t.Fatalf("case %d: Matches(%q) = %v", i, tc.q, got)
		}
	}
}

func TestGroupByDate(t *testing.T) {
	txs := []Transaction{
		{ID: "a", Date: NewDate(2024, 1, 3)},
		{ID: "b", Date: NewDate(2024, 1, 5)},
		{ID: "c", Date: NewDate(2024, 1, 3)},
	}
	groups := GroupByDate(txs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Date.Day() != 5 || groups[1].Date.Day() != 3 {
		t.Fatalf("groups not newest first: %v, %v", groups[0].Date, groups[1].Date)
	}
	if len(groups[1].Transactions) != 2 || groups[1].Transactions[0].ID != "a" || groups[1].Transactions[1].ID != "c" {
		t.Fatalf("unexpected group content: %+v", groups[1].Transactions)
	}
}

func TestSortByDateDesc(t *testing.T) {
	txs := []Transaction{
		{ID: "old", Date: NewDate(2023, 12, 31)},
		{ID: "new", Date: NewDate(2024, 1, 1)},
	}
	SortByDateDesc(txs)
	if txs[0].ID != "new" {
		t.Fatalf("expected newest first, got %s", txs[0].ID)
	}
}
