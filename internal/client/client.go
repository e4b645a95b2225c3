// Package client is a typed HTTP client for the mex API. Its Update method
// satisfies occ.Updater: stale-version rejections come back as
// *occ.ConflictError so a form session can capture and resolve them, and
// every other failure is propagated as a plain error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"mex/internal/occ"
)

// Client talks to one mex server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL (e.g. "http://localhost:9000").
// A cookie jar holds the session across calls.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return apiError("login", resp)
	}
	return nil
}

// Get fetches the current snapshot of an entity.
func (c *Client) Get(ctx context.Context, resource, id string) (occ.Entity, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, resource, id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, apiError("get "+resource+"/"+id, resp)
	}
	return decodeEntity(resp.Body)
}

// Create posts a new entity.
func (c *Client) Create(ctx context.Context, resource string, entity occ.Entity) (occ.Entity, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/v1/%s", c.baseURL, resource), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, apiError("create "+resource, resp)
	}
	return decodeEntity(resp.Body)
}

// Update PUTs a full candidate entity, version included. A 409 carrying the
// conflict envelope returns a *occ.ConflictError; any other non-200 status is
// propagated unchanged as a plain error, never reclassified.
func (c *Client) Update(ctx context.Context, resource, id string, entity occ.Entity) (occ.Entity, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "PUT",
		fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, resource, id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		if cerr, ok := occ.ParseConflict(resp.StatusCode, raw); ok {
			return nil, cerr
		}
		return nil, fmt.Errorf("update %s/%s: status %d: %s", resource, id, resp.StatusCode, errMessage(raw))
	}
	return decodeEntity(resp.Body)
}

// Updater adapts the client to occ.Updater for one entity. The entity's id
// field addresses the resource on each call.
func (c *Client) Updater(resource string) occ.UpdaterFunc {
	return func(ctx context.Context, entity occ.Entity) (occ.Entity, error) {
		id, _ := entity[occ.FieldID].(string)
		if id == "" {
			return nil, fmt.Errorf("entity has no string id")
		}
		return c.Update(ctx, resource, id, entity)
	}
}

// NewSession fetches the entity and seeds a form session bound to it.
func (c *Client) NewSession(ctx context.Context, resource, id string) (*occ.Session, error) {
	entity, err := c.Get(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	return occ.NewSession(entity, c.Updater(resource)), nil
}

func decodeEntity(r io.Reader) (occ.Entity, error) {
	var envelope struct {
		Data occ.Entity `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return envelope.Data, nil
}

func apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, errMessage(raw))
}

func errMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return string(raw)
}
