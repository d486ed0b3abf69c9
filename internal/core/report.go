package core

import (
	"sort"
	"time"
)

// DayEntry carries the sums of one calendar day.
type DayEntry struct {
	Day     int   `json:"day"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// CategoryAmount represents expense aggregated by category name.
type CategoryAmount struct {
	Name       string  `json:"name"`
	Amount     Money   `json:"value"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

// MonthlyReport summarizes one (year, month) of a ledger.
type MonthlyReport struct {
	Year              int              `json:"year"`
	Month             int              `json:"month"` // 1-12
	TotalIncome       Money            `json:"totalIncome"`
	TotalExpense      Money            `json:"totalExpense"`
	Balance           Money            `json:"balance"`
	SavingsRate       float64          `json:"savingsRate"`
	CategoryBreakdown map[string]Money `json:"categoryBreakdown"`
	Categories        []CategoryAmount `json:"categories"`
	Daily             []DayEntry       `json:"dailySeries"`
	TransactionCount  int              `json:"transactionCount"`
}

// DaysInMonth returns the number of calendar days of the month, leap years
// included.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ComputeReport aggregates the transactions dated within (year, month).
// Income adds to TotalIncome; any other kind counts as expense and is bucketed
// by its exact category label. The result does not depend on input order.
func ComputeReport(txs []Transaction, year, month int) MonthlyReport {
	days := DaysInMonth(year, month)
	r := MonthlyReport{
		Year:              year,
		Month:             month,
		CategoryBreakdown: make(map[string]Money),
		Categories:        []CategoryAmount{},
		Daily:             make([]DayEntry, days),
	}
	for i := range r.Daily {
		r.Daily[i].Day = i + 1
	}

	for _, t := range txs {
		if t.Date.Year() != year || t.Date.Month() != month {
			continue
		}
		r.TransactionCount++
		day := t.Date.Day()
		if t.Kind == KindIncome {
			r.TotalIncome = r.TotalIncome.Add(t.Amount)
			r.Daily[day-1].Income = r.Daily[day-1].Income.Add(t.Amount)
			continue
		}
		r.TotalExpense = r.TotalExpense.Add(t.Amount)
		r.CategoryBreakdown[t.Category] = r.CategoryBreakdown[t.Category].Add(t.Amount)
		r.Daily[day-1].Expense = r.Daily[day-1].Expense.Add(t.Amount)
	}

	r.Balance = r.TotalIncome.Sub(r.TotalExpense)
	if r.TotalIncome.Cents > 0 {
		r.SavingsRate = float64(r.Balance.Cents) / float64(r.TotalIncome.Cents) * 100
	}

	for name, amount := range r.CategoryBreakdown {
		ca := CategoryAmount{Name: name, Amount: amount, Color: CategoryColor(name)}
		if r.TotalExpense.Cents > 0 {
			ca.Percentage = float64(amount.Cents) / float64(r.TotalExpense.Cents) * 100
		}
		r.Categories = append(r.Categories, ca)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		a, b := r.Categories[i], r.Categories[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return r
}
