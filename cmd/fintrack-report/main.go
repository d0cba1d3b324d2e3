// Command fintrack-report logs in, fetches a date range of transactions and
// prints the spending aggregations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/reports"
)

func main() {
	_ = godotenv.Load()

	var (
		startFlag = flag.String("start", "", "range start (YYYY-MM-DD, default: first of current month)")
		endFlag   = flag.String("end", "", "range end (YYYY-MM-DD, default: today)")
		topFlag   = flag.Int("top", 5, "number of top expense categories to show")
	)
	flag.Parse()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentReports,
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now
	var err error
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			logger.Error("Invalid -start date", log.FieldError, err)
			os.Exit(1)
		}
	}
	if *endFlag != "" {
		if end, err = time.Parse("2006-01-02", *endFlag); err != nil {
			logger.Error("Invalid -end date", log.FieldError, err)
			os.Exit(1)
		}
	}

	email := os.Getenv("FINTRACK_EMAIL")
	password := os.Getenv("FINTRACK_PASSWORD")
	if email == "" || password == "" {
		logger.Error("FINTRACK_EMAIL and FINTRACK_PASSWORD are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var token string
	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithTokenSource(func() string { return token }),
	)

	auth, err := client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		logger.Error("Login failed", log.FieldError, err)
		os.Exit(1)
	}
	token = auth.Token

	transactions, err := fetchRange(ctx, client, start, end)
	if err != nil {
		logger.Error("Failed to fetch transactions", log.FieldError, err)
		os.Exit(1)
	}

	printReport(transactions, start, end, *topFlag)
}

// fetchRange pages through the range until the server runs out of results.
func fetchRange(ctx context.Context, client *api.Client, start, end time.Time) ([]core.Transaction, error) {
	var all []core.Transaction
	for page := 1; ; page++ {
		result, err := client.ListTransactions(ctx, api.TransactionFilters{
			Page:      page,
			Limit:     100,
			StartDate: core.Date{Time: start},
			EndDate:   core.Date{Time: end},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, result.Transactions...)
		if len(result.Transactions) == 0 || page >= result.Pagination.Pages {
			return all, nil
		}
	}
}

func printReport(transactions []core.Transaction, start, end time.Time, top int) {
	fmt.Printf("Report %s .. %s (%d transactions)\n\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"), len(transactions))

	fmt.Printf("Balance: %s\n\n", reports.Balance(transactions).StringFixed(2))

	fmt.Println("Income vs expense:")
	for _, slice := range reports.IncomeVsExpense(transactions) {
		fmt.Printf("  %-10s %12s  %6s%%  (%d)\n",
			slice.Label, slice.Value.StringFixed(2), slice.Percentage.StringFixed(2), slice.Count)
	}
	fmt.Println()

	fmt.Println("Balance by category:")
	for _, cb := range reports.BalanceByCategory(transactions, nil) {
		fmt.Printf("  %-20s income %12s  expense %12s  (%d)\n",
			cb.Category, cb.Income.StringFixed(2), cb.Expense.StringFixed(2), cb.Count)
	}
	fmt.Println()

	fmt.Printf("Top %d expense categories:\n", top)
	for _, ct := range reports.TopCategories(transactions, core.Expense, top) {
		fmt.Printf("  %-20s %12s  (%d)\n", ct.Category, ct.Total.StringFixed(2), ct.Count)
	}
	fmt.Println()

	fmt.Println("Monthly trend:")
	for _, point := range reports.MonthlyTrend(transactions, start, end) {
		fmt.Printf("  %04d-%02d  income %12s  expense %12s\n",
			point.Year, point.Month, point.Income.StringFixed(2), point.Expense.StringFixed(2))
	}
}
