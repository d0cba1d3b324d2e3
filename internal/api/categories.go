package api

import (
	"context"
	"net/http"
	"net/url"

	"fintrack/internal/core"
)

type CategoryRequest struct {
	Name        string               `json:"name"`
	Direction   core.TransactionKind `json:"transactionType"`
	Description string               `json:"description,omitempty"`
	Color       string               `json:"color,omitempty"`
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var categories []core.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, req CategoryRequest) (*core.Category, error) {
	var category core.Category
	if err := c.do(ctx, http.MethodPost, "/categories", req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, req CategoryRequest) (*core.Category, error) {
	var category core.Category
	if err := c.do(ctx, http.MethodPut, "/categories/"+url.PathEscape(id), req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil)
}
