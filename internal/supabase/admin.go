// Package supabase is a minimal client for the Supabase Auth admin API.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var ErrUserNotFound = errors.New("supabase user not found")

type Config struct {
	URL            string
	ServiceRoleKey string
	HTTPClient     *http.Client
}

// Admin calls /auth/v1/admin with the service role key.
type Admin struct {
	authURL    string
	serviceKey string
	httpClient *http.Client
}

func NewAdmin(cfg Config) (*Admin, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("service role key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Admin{
		authURL:    strings.TrimSuffix(cfg.URL, "/") + "/auth/v1",
		serviceKey: cfg.ServiceRoleKey,
		httpClient: httpClient,
	}, nil
}

// APIError is a non-2xx response from Supabase.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase auth: status %d: %s", e.Status, e.Message)
}

func (a *Admin) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.authURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", a.serviceKey)
	req.Header.Set("Authorization", "Bearer "+a.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "msg").String()
		if msg == "" {
			msg = gjson.GetBytes(body, "message").String()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// DeleteUser removes the auth user. A user that is already gone is not an error.
func (a *Admin) DeleteUser(ctx context.Context, userID string) error {
	_, err := a.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID))
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}
