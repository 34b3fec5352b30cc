package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haldane/pkgd/internal/domain"
)

// PushClient is the HTTPS leg of the sync protocol. Requests carry only
// {node_id, text} pairs; the backend embeds and discards the text.
type PushClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewPushClient(baseURL, token string) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type pushRequest struct {
	UserID string            `json:"user_id"`
	Nodes  []domain.NodeText `json:"nodes"`
}

type purgeRequest struct {
	UserID         string   `json:"user_id"`
	DeletedNodeIDs []string `json:"deleted_node_ids"`
}

func (c *PushClient) PushNodes(ctx context.Context, userID string, nodes []domain.NodeText) error {
	return c.do(ctx, http.MethodPost, pushRequest{UserID: userID, Nodes: nodes})
}

func (c *PushClient) PurgeNodes(ctx context.Context, userID string, nodeIDs []string) error {
	return c.do(ctx, http.MethodDelete, purgeRequest{UserID: userID, DeletedNodeIDs: nodeIDs})
}

func (c *PushClient) do(ctx context.Context, method string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/v1/pkg/vectors", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
