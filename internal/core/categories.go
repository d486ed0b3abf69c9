package core

import "slices"

const (
	DefaultIncomeCategory  = "Other Income"
	DefaultExpenseCategory = "Miscellaneous"

	// FallbackColor is used for labels outside the suggested vocabulary.
	FallbackColor = "#94a3b8"
)

var (
	expenseCategories = []string{
		"Food & Drink",
		"Groceries",
		"Transport",
		"Shopping",
		"Utilities",
		"Housing",
		"Entertainment",
		"Health",
		"Education",
		"Travel",
		DefaultExpenseCategory,
	}

	incomeCategories = []string{
		"Salary",
		"Freelance",
		"Investment",
		"Gift",
		DefaultIncomeCategory,
	}

	categoryColors = map[string]string{
		"Food & Drink":  "#f87171",
		"Groceries":     "#fb923c",
		"Transport":     "#facc15",
		"Shopping":      "#a78bfa",
		"Utilities":     "#60a5fa",
		"Housing":       "#2dd4bf",
		"Entertainment": "#e879f9",
		"Health":        "#fb7185",
		"Education":     "#818cf8",
		"Travel":        "#34d399",
		"Miscellaneous": "#94a3b8",
		"Salary":        "#22c55e",
		"Freelance":     "#10b981",
		"Investment":    "#0ea5e9",
		"Gift":          "#d946ef",
		"Other Income":  "#64748b",
	}
)

// Categories returns a copy of the suggested vocabulary for a kind. Anything
// that is not income gets the expense list.
func Categories(k Kind) []string {
	if k == KindIncome {
		return slices.Clone(incomeCategories)
	}
	return slices.Clone(expenseCategories)
}

// DefaultCategory is the label used when no better one is known.
func DefaultCategory(k Kind) string {
	if k == KindIncome {
		return DefaultIncomeCategory
	}
	return DefaultExpenseCategory
}

// IsKnownCategory reports whether label belongs to the vocabulary of k.
// The match is exact.
func IsKnownCategory(k Kind, label string) bool {
	if k == KindIncome {
		return slices.Contains(incomeCategories, label)
	}
	return slices.Contains(expenseCategories, label)
}

// CategoryColor returns the display color of a label.
func CategoryColor(label string) string {
	if c, ok := categoryColors[label]; ok {
		return c
	}
	return FallbackColor
}
