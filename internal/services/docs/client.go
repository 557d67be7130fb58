// Package docs exports generated minutes into a new Google Doc on behalf of
// the signed-in user.
package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
)

// DocumentsScope must be granted to the caller's access token.
const DocumentsScope = "https://www.googleapis.com/auth/documents"

const (
	defaultDocsBaseURL  = "https://docs.googleapis.com"
	defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	requestTimeout      = 30 * time.Second
)

// Document identifies an exported document.
type Document struct {
	ID  string `json:"documentId"`
	URL string `json:"documentUrl"`
}

// Client calls the Google Docs API with a user-supplied access token.
type Client struct {
	docsBaseURL  string
	tokenInfoURL string
	httpClient   *http.Client
}

func NewClient() *Client {
	return &Client{
		docsBaseURL:  defaultDocsBaseURL,
		tokenInfoURL: defaultTokenInfoURL,
		httpClient:   httpclient.NewInstrumentedClient(requestTimeout),
	}
}

type tokenInfo struct {
	Scope     string `json:"scope"`
	Audience  string `json:"aud"`
	ExpiresIn string `json:"expires_in"`
}

// CheckToken verifies accessToken and that it carries DocumentsScope.
func (c *Client) CheckToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.NewUnauthorizedError("Google authorization required", "MISSING_GOOGLE_TOKEN")
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, "google-oauth"), http.MethodGet,
		c.tokenInfoURL+"?access_token="+url.QueryEscape(accessToken), nil)
	if err != nil {
		return errors.NewExportError("failed to create token info request", "TOKEN_INFO_ERROR", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewExportError("failed to verify Google token", "TOKEN_INFO_ERROR", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewUnauthorizedError("invalid or expired Google access token", "INVALID_GOOGLE_TOKEN")
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return errors.NewExportError("failed to parse token info", "TOKEN_INFO_ERROR", err)
	}

	for _, scope := range strings.Fields(info.Scope) {
		if scope == DocumentsScope {
			return nil
		}
	}
	slog.WarnContext(ctx, "Google token lacks documents scope", "scopes", info.Scope)
	return errors.NewForbiddenError(
		"the Google token does not grant access to Google Docs",
		"MISSING_DOCS_SCOPE",
		"Sign in again and allow Google Docs access",
	)
}

// Export creates a document titled title and writes markdown into it.
func (c *Client) Export(ctx context.Context, accessToken, title, markdown string) (*Document, error) {
	if err := c.CheckToken(ctx, accessToken); err != nil {
		return nil, err
	}

	authed := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
		Timeout: c.httpClient.Timeout,
	}

	var created struct {
		DocumentID string `json:"documentId"`
	}
	if err := c.post(ctx, authed, "/v1/documents", map[string]string{"title": title}, &created); err != nil {
		return nil, err
	}
	if created.DocumentID == "" {
		return nil, errors.NewExportError("document created without an id", "DOCS_NO_ID", nil)
	}

	requests := Convert(markdown)
	if len(requests) > 0 {
		path := fmt.Sprintf("/v1/documents/%s:batchUpdate", url.PathEscape(created.DocumentID))
		if err := c.post(ctx, authed, path, map[string]any{"requests": requests}, nil); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Exported minutes to Google Docs",
		"document_id", created.DocumentID,
		"requests", len(requests))

	return &Document{
		ID:  created.DocumentID,
		URL: fmt.Sprintf("https://docs.google.com/document/d/%s/edit", created.DocumentID),
	}, nil
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewExportError("failed to encode Docs request", "DOCS_REQUEST_ERROR", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, "google-docs"), http.MethodPost, c.docsBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.NewExportError("failed to create Docs request", "DOCS_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.NewExportError("failed to call Google Docs API", "DOCS_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewExportError("failed to read Docs response", "READ_RESPONSE_ERROR", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.NewUnauthorizedError("Google authorization expired", "GOOGLE_TOKEN_EXPIRED")
	case resp.StatusCode == http.StatusForbidden:
		return errors.NewForbiddenError("not allowed to create Google Docs", "DOCS_PERMISSION_DENIED", "Make sure Google Docs access was granted")
	case resp.StatusCode >= 300:
		return errors.NewExportError(fmt.Sprintf("Google Docs API error (status %d)", resp.StatusCode), "DOCS_API_HTTP_ERROR",
			fmt.Errorf("upstream response: %s", respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewExportError("failed to parse Docs response", "PARSE_RESPONSE_ERROR", err)
	}
	return nil
}
