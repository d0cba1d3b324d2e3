package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// TransactionFilters narrows a transaction listing. Zero values are omitted
// from the query string.
type TransactionFilters struct {
	Page      int
	Limit     int
	Kind      core.TransactionKind
	Category  string
	StartDate core.Date
	EndDate   core.Date
}

func (f TransactionFilters) query() string {
	params := url.Values{}
	if f.Page > 0 {
		params.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Kind != "" {
		params.Set("type", string(f.Kind))
	}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if !f.StartDate.IsZero() {
		params.Set("startDate", f.StartDate.Format("2006-01-02"))
	}
	if !f.EndDate.IsZero() {
		params.Set("endDate", f.EndDate.Format("2006-01-02"))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TransactionPage is the listing payload: the page of transactions plus
// pagination info and the summary for the filtered range.
type TransactionPage struct {
	Transactions []core.Transaction       `json:"transactions"`
	Pagination   Pagination               `json:"pagination"`
	Summary      *core.TransactionSummary `json:"summary"`
}

type CreateTransactionRequest struct {
	Kind           core.TransactionKind `json:"type"`
	Amount         decimal.Decimal      `json:"amount"`
	Category       string               `json:"category"`
	Description    string               `json:"description"`
	Date           core.Date            `json:"date,omitempty"`
	Periodicity    core.Periodicity     `json:"periodicity,omitempty"`
	RecurrenceRule string               `json:"recurrenceRule,omitempty"`
}

// CategoryStat is one category's totals inside a monthly stats group.
type CategoryStat struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Color    string          `json:"color,omitempty"`
}

// StatGroup is the per-direction grouping of the monthly stats endpoint.
type StatGroup struct {
	Direction  core.TransactionKind `json:"_id"`
	Categories []CategoryStat       `json:"categories"`
	Total      decimal.Decimal      `json:"total"`
	Count      int                  `json:"count"`
}

type MonthlyStats struct {
	Month int         `json:"month"`
	Year  int         `json:"year"`
	Stats []StatGroup `json:"stats"`
}

func (c *Client) ListTransactions(ctx context.Context, filters TransactionFilters) (*TransactionPage, error) {
	var page TransactionPage
	if err := c.do(ctx, http.MethodGet, "/transactions"+filters.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	var tx core.Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*core.Transaction, error) {
	var tx core.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, req CreateTransactionRequest) (*core.Transaction, error) {
	var tx core.Transaction
	if err := c.do(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil)
}

// GetMonthlyStats returns the backend's grouped totals for a single month.
func (c *Client) GetMonthlyStats(ctx context.Context, year, month int) (*MonthlyStats, error) {
	path := fmt.Sprintf("/transactions/stats/monthly?year=%d&month=%d", year, month)
	var stats MonthlyStats
	if err := c.do(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
