package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const refreshPath = "/auth/refresh"

// StatusError is returned when the auth service answers a refresh with
// anything but 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth refresh: unexpected status %d", e.Code)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccessExp    int64  `json:"access_exp"`
	RefreshExp   int64  `json:"refresh_exp"`
}

// RefreshTokens exchanges the caller's refresh cookie for a new token pair.
// Tokens set as cookies by the auth service win over an empty JSON body.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*RefreshResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return nil, fmt.Errorf("auth refresh: build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var out RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("auth refresh: decode: %w", err)
	}
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "accessToken":
			if out.AccessToken == "" {
				out.AccessToken, out.AccessExp = ck.Value, ck.Expires.Unix()
			}
		case "refreshToken":
			if out.RefreshToken == "" {
				out.RefreshToken, out.RefreshExp = ck.Value, ck.Expires.Unix()
			}
		}
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("auth refresh: no access token in response")
	}
	return &out, nil
}
