package as

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CSClient is the AS-side HTTP client for a single Chunk Service replica.
type CSClient struct {
	client *http.Client
}

// NewCSClient creates a client for talking to chunk servers.
func NewCSClient(timeout time.Duration) *CSClient {
	return &CSClient{client: &http.Client{Timeout: timeout}}
}

// GetChunk streams the body of chunkID from the CS at addr.
func (c *CSClient) GetChunk(ctx context.Context, addr, chunkID string) ([]byte, error) {
	u := "http://" + addr + "/get_chunk?" + url.Values{"chunk_id": {chunkID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get_chunk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get_chunk returned status %d", resp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read get_chunk body: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateChunk writes body as a new blob chunkID on the CS at addr.
func (c *CSClient) CreateChunk(ctx context.Context, addr, chunkID string, body []byte) error {
	u := "http://" + addr + "/create_chunk?" + url.Values{"chunk_id": {chunkID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("create_chunk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create_chunk returned status %d", resp.StatusCode)
	}
	return nil
}

// UpdateChunk issues the copy-on-write update primitive against the CS at
// addr: patch oldID at beginPos with body, writing the result as newID.
func (c *CSClient) UpdateChunk(ctx context.Context, addr, oldID, newID string, beginPos int64, body []byte) error {
	query := url.Values{
		"chunk_id":  {oldID},
		"new_id":    {newID},
		"begin_pos": {strconv.FormatInt(beginPos, 10)},
	}
	u := "http://" + addr + "/update_chunk?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update_chunk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update_chunk returned status %d", resp.StatusCode)
	}
	return nil
}
