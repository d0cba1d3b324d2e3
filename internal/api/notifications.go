package api

import (
	"context"
	"net/http"
	"net/url"

	"fintrack/internal/core"
)

// FetchUnread returns the server's current unread notification set for the
// user. The backend exposes this as a POST.
func (c *Client) FetchUnread(ctx context.Context, userID string) ([]core.NotificationEvent, error) {
	var events []core.NotificationEvent
	if err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(userID), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MarkNotificationRead marks a single server-side notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, serverID string) error {
	path := "/notifications/" + url.PathEscape(userID) + "/" + url.PathEscape(serverID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// MarkAllNotificationsRead marks every server-side notification for the user
// as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(userID), nil, nil)
}

// DeleteNotification deletes a single server-side notification.
func (c *Client) DeleteNotification(ctx context.Context, userID, serverID string) error {
	path := "/notifications/" + url.PathEscape(userID) + "/" + url.PathEscape(serverID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
