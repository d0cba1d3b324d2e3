// Package reports computes spending aggregations from transaction lists.
// Every function is pure: it never mutates its input and returns the same
// output for the same input.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// CategoryTotal is one category's aggregate within a report. Color is the
// category's display color when the caller supplies an index, empty
// otherwise.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
	Color    string
}

// CategoryBalance is one category's net position with income and expense
// kept apart, so a diverging chart can render both directions. Expense is
// negated.
type CategoryBalance struct {
	Category string
	Income   decimal.Decimal
	Expense  decimal.Decimal
	Count    int
	Color    string
}

// Slice is one share of a breakdown, with its percentage of the whole.
type Slice struct {
	Label      string
	Value      decimal.Decimal
	Count      int
	Percentage decimal.Decimal
}

// MonthPoint is one month's income and expense totals.
type MonthPoint struct {
	Year    int
	Month   time.Month
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// CategoryColors builds a name-to-color index from a fetched category list.
// When a name repeats the later entry wins, matching how the server resolves
// a category rename that reuses a name.
func CategoryColors(categories []core.Category) map[string]string {
	if len(categories) == 0 {
		return nil
	}
	colors := make(map[string]string, len(categories))
	for _, c := range categories {
		if c.Color != "" {
			colors[c.Name] = c.Color
		}
	}
	return colors
}

// Balance returns the net of the given transactions: income minus expense.
func Balance(transactions []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		total = total.Add(signed(t))
	}
	return total
}

// ByCategory sums every transaction per category regardless of direction,
// using raw amounts. Summing the totals therefore reproduces the sum of all
// amounts in the input. Categories appear in the order they are first seen.
// colors may be nil.
func ByCategory(transactions []core.Transaction, colors map[string]string) []CategoryTotal {
	return accumulate(transactions, colors, func(t core.Transaction) (string, decimal.Decimal, bool) {
		return t.Category, t.Amount, true
	})
}

// ByCategoryForKind sums transactions of one direction per category, in
// first-seen order.
func ByCategoryForKind(transactions []core.Transaction, kind core.TransactionKind, colors map[string]string) []CategoryTotal {
	return accumulate(transactions, colors, func(t core.Transaction) (string, decimal.Decimal, bool) {
		if t.Kind != kind {
			return "", decimal.Zero, false
		}
		return t.Category, t.Amount, true
	})
}

// BalanceByCategory aggregates all transactions per category keeping income
// and expense in separate signed fields, expense negated. colors may be nil.
func BalanceByCategory(transactions []core.Transaction, colors map[string]string) []CategoryBalance {
	var balances []CategoryBalance
	index := map[string]int{}
	for _, t := range transactions {
		i, seen := index[t.Category]
		if !seen {
			i = len(balances)
			index[t.Category] = i
			balances = append(balances, CategoryBalance{
				Category: t.Category,
				Income:   decimal.Zero,
				Expense:  decimal.Zero,
				Color:    colors[t.Category],
			})
		}
		switch t.Kind {
		case core.Income:
			balances[i].Income = balances[i].Income.Add(t.Amount)
		case core.Expense:
			balances[i].Expense = balances[i].Expense.Sub(t.Amount)
		}
		balances[i].Count++
	}
	return balances
}

// IncomeVsExpense returns the two-way breakdown with counts and percentages.
// When both totals are zero each percentage is zero, not an error.
func IncomeVsExpense(transactions []core.Transaction) []Slice {
	income := Slice{Label: "income", Value: decimal.Zero}
	expense := Slice{Label: "expense", Value: decimal.Zero}
	for _, t := range transactions {
		switch t.Kind {
		case core.Income:
			income.Value = income.Value.Add(t.Amount)
			income.Count++
		case core.Expense:
			expense.Value = expense.Value.Add(t.Amount)
			expense.Count++
		}
	}
	return Breakdown([]Slice{income, expense})
}

// CategoryBreakdown returns per-category slices of one kind with percentages
// of that kind's total.
func CategoryBreakdown(transactions []core.Transaction, kind core.TransactionKind) []Slice {
	totals := ByCategoryForKind(transactions, kind, nil)
	slices := make([]Slice, 0, len(totals))
	for _, ct := range totals {
		slices = append(slices, Slice{Label: ct.Category, Value: ct.Total, Count: ct.Count})
	}
	return Breakdown(slices)
}

// Breakdown fills in each slice's percentage of the summed values, rounded to
// two decimals. A zero sum yields zero percentages.
func Breakdown(slices []Slice) []Slice {
	sum := decimal.Zero
	for _, s := range slices {
		sum = sum.Add(s.Value)
	}

	out := make([]Slice, len(slices))
	hundred := decimal.NewFromInt(100)
	for i, s := range slices {
		pct := decimal.Zero
		if !sum.IsZero() {
			pct = s.Value.Mul(hundred).Div(sum).Round(2)
		}
		out[i] = Slice{Label: s.Label, Value: s.Value, Count: s.Count, Percentage: pct}
	}
	return out
}

// MonthlyTrend buckets transactions into calendar months between start and
// end inclusive. Every month in the range gets a point, zero-valued when
// nothing falls in it; transactions outside the range are ignored.
func MonthlyTrend(transactions []core.Transaction, start, end time.Time) []MonthPoint {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return nil
	}

	var points []MonthPoint
	index := map[string]int{}
	for cursor := first; !cursor.After(last); cursor = cursor.AddDate(0, 1, 0) {
		index[monthKey(cursor.Year(), cursor.Month())] = len(points)
		points = append(points, MonthPoint{
			Year:    cursor.Year(),
			Month:   cursor.Month(),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		})
	}

	for _, t := range transactions {
		i, ok := index[monthKey(t.Date.Year(), t.Date.Month())]
		if !ok {
			continue
		}
		switch t.Kind {
		case core.Income:
			points[i].Income = points[i].Income.Add(t.Amount)
		case core.Expense:
			points[i].Expense = points[i].Expense.Add(t.Amount)
		}
	}
	return points
}

// TopCategories returns the n largest categories of one kind by total,
// descending. Ties keep first-seen order.
func TopCategories(transactions []core.Transaction, kind core.TransactionKind, n int) []CategoryTotal {
	totals := ByCategoryForKind(transactions, kind, nil)
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Total.GreaterThan(totals[j].Total)
	})
	if n > 0 && len(totals) > n {
		totals = totals[:n]
	}
	return totals
}

// signed returns the amount with expense negated.
func signed(t core.Transaction) decimal.Decimal {
	if t.Kind == core.Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func monthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// accumulate merges transactions into per-category totals in first-seen
// order. A category's color is resolved once, on first sight.
func accumulate(transactions []core.Transaction, colors map[string]string, pick func(core.Transaction) (string, decimal.Decimal, bool)) []CategoryTotal {
	var totals []CategoryTotal
	index := map[string]int{}
	for _, t := range transactions {
		category, amount, ok := pick(t)
		if !ok {
			continue
		}
		i, seen := index[category]
		if !seen {
			index[category] = len(totals)
			totals = append(totals, CategoryTotal{
				Category: category,
				Total:    amount,
				Count:    1,
				Color:    colors[category],
			})
			continue
		}
		totals[i].Total = totals[i].Total.Add(amount)
		totals[i].Count++
	}
	return totals
}
