package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// doJSON issues a JSON request. Authenticated calls go through the refresh
// path on a 401.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = encoded
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if authed {
		return c.sendAuthed(req, payload, out)
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// sendAuthed attaches the bearer token and, on a 401, refreshes the access
// token and retries exactly once. Concurrent 401s share a single refresh
// call; the rest wait for its result.
func (c *Client) sendAuthed(req *http.Request, payload []byte, out any) error {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	if token == "" {
		return fmt.Errorf("not logged in")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	err := c.send(req, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	fresh, refreshErr := c.refreshAccessToken(req.Context())
	if refreshErr != nil {
		// Surface the original 401; the caller decides whether to re-login.
		return err
	}

	retry := req.Clone(req.Context())
	if payload != nil {
		retry.Body = io.NopCloser(bytes.NewReader(payload))
		retry.ContentLength = int64(len(payload))
	} else {
		retry.Body = nil
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)
	return c.send(retry, out)
}

// refreshAccessToken exchanges the refresh token for a new access token.
// singleflight collapses concurrent refreshes into one server call.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	result, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		c.mu.RLock()
		refresh := c.refreshToken
		c.mu.RUnlock()
		if refresh == "" {
			return "", fmt.Errorf("no refresh token")
		}

		payload, err := json.Marshal(map[string]string{"refresh_token": refresh})
		if err != nil {
			return "", err
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/refresh", payload)
		if err != nil {
			return "", err
		}

		var resp struct {
			AccessToken string `json:"access_token"`
		}
		if err := c.send(req, &resp); err != nil {
			return "", err
		}

		c.mu.Lock()
		c.accessToken = resp.AccessToken
		c.mu.Unlock()
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// send executes the request and decodes the response. Error statuses are
// decoded into APIError.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
