package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	keywordsPath = "/hotdeal/v1/keywords"
	sitesPath    = "/hotdeal/v1/sites"
)

// ListKeywords returns the keywords the logged-in user tracks.
func (c *Client) ListKeywords(ctx context.Context) ([]Keyword, error) {
	var keywords []Keyword
	if err := c.call(ctx, http.MethodGet, keywordsPath, nil, &keywords); err != nil {
		return nil, err
	}
	return keywords, nil
}

// CreateKeyword starts tracking title. Blank titles are rejected locally.
func (c *Client) CreateKeyword(ctx context.Context, title string) (Keyword, error) {
	req := keywordRequest{Title: strings.TrimSpace(title)}
	if err := c.validate.Struct(req); err != nil {
		return Keyword{}, fmt.Errorf("invalid keyword: %w", err)
	}

	var keyword Keyword
	if err := c.call(ctx, http.MethodPost, keywordsPath, req, &keyword); err != nil {
		return Keyword{}, err
	}
	return keyword, nil
}

// DeleteKeyword stops tracking one of the user's own keywords.
func (c *Client) DeleteKeyword(ctx context.Context, id int) error {
	param, err := pathParam("keyword_id", id)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, keywordsPath+"/"+param, nil, nil)
}

// ListSites returns the sites the crawler searches.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.call(ctx, http.MethodGet, sitesPath, nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}
