package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	adminUsersPath    = "/admin/users"
	adminKeywordsPath = "/admin/keywords"
	adminLogsPath     = "/admin/logs"
	adminSearchPath   = "/admin/hotdeals/trigger-search"
)

// ListUsers returns all accounts.
func (c *Client) ListUsers(ctx context.Context) (UserList, error) {
	var users UserList
	if err := c.call(ctx, http.MethodGet, adminUsersPath, nil, &users); err != nil {
		return UserList{}, err
	}
	return users, nil
}

// GetUser returns an account with its keywords.
func (c *Client) GetUser(ctx context.Context, id uuid.UUID) (UserDetail, error) {
	path, err := userPath(id, "")
	if err != nil {
		return UserDetail{}, err
	}

	var user UserDetail
	if err := c.call(ctx, http.MethodGet, path, nil, &user); err != nil {
		return UserDetail{}, err
	}
	return user, nil
}

// ApproveUser activates an account so it can log in.
func (c *Client) ApproveUser(ctx context.Context, id uuid.UUID) error {
	path, err := userPath(id, "/approve")
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPatch, path, nil, nil)
}

// UnapproveUser deactivates an account.
func (c *Client) UnapproveUser(ctx context.Context, id uuid.UUID) error {
	path, err := userPath(id, "/unapprove")
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPatch, path, nil, nil)
}

// ListAllKeywords returns the keywords of every user.
func (c *Client) ListAllKeywords(ctx context.Context) ([]Keyword, error) {
	var list itemList[Keyword]
	if err := c.call(ctx, http.MethodGet, adminKeywordsPath, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// DeleteAnyKeyword deletes a keyword regardless of its owner.
func (c *Client) DeleteAnyKeyword(ctx context.Context, id int) error {
	param, err := pathParam("keyword_id", id)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, adminKeywordsPath+"/"+param, nil, nil)
}

// ListWorkerLogs returns crawler runs, newest first.
func (c *Client) ListWorkerLogs(ctx context.Context) ([]WorkerLog, error) {
	var list itemList[WorkerLog]
	if err := c.call(ctx, http.MethodGet, adminLogsPath, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// TriggerSearch starts a crawler run in the background and returns the server's message.
func (c *Client) TriggerSearch(ctx context.Context) (string, error) {
	var msg messageResponse
	if err := c.call(ctx, http.MethodPost, adminSearchPath, nil, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

func userPath(id uuid.UUID, suffix string) (string, error) {
	param, err := pathParam("user_id", id.String())
	if err != nil {
		return "", err
	}
	return adminUsersPath + "/" + param + suffix, nil
}
