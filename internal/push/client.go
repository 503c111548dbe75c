// Package push talks to the external push-notification bouncer. The only
// call the migration pipeline needs is the realm announcement at the end
// of an import.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatforge/realmsync/internal/pkg/httpretry"
)

// Client announces realms to a push bouncer.
type Client struct {
	baseURL string
	http    *httpretry.Client
}

// New creates a client for the bouncer at baseURL.
func New(baseURL string) *Client {
	inner := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		baseURL: baseURL,
		http:    httpretry.New(inner, 3),
	}
}

// AnnounceRealm registers a newly imported realm with the bouncer.
func (c *Client) AnnounceRealm(ctx context.Context, realmID int64, subdomain string) error {
	body, err := json.Marshal(map[string]any{
		"realm_id":  realmID,
		"subdomain": subdomain,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/remotes/realms", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("announce realm %d: %w", realmID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("announce realm %d: bouncer returned %s", realmID, resp.Status)
	}
	return nil
}
