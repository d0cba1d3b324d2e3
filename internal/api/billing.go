package api

import (
	"context"
	"net/http"
	"net/url"
)

// CheckoutSession is the hosted payment page created for a subscription.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// SubscriptionStatus reflects the user's current billing state.
type SubscriptionStatus struct {
	Status           string `json:"status"`
	Plan             string `json:"plan,omitempty"`
	CurrentPeriodEnd string `json:"currentPeriodEnd,omitempty"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, userID, priceID string) (*CheckoutSession, error) {
	body := map[string]string{"userId": userID, "priceId": priceID}
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/stripe/create-checkout-session", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetSubscriptionStatus(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	var status SubscriptionStatus
	if err := c.do(ctx, http.MethodGet, "/stripe/subscription-status/"+url.PathEscape(userID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
