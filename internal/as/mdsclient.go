package as

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gastrolog/internal/wire"
)

// MDSClient is the AS-side HTTP client for the Metadata Service.
type MDSClient struct {
	addr   string
	client *http.Client
}

// NewMDSClient creates a client talking to the MDS at addr (host:port).
func NewMDSClient(addr string, timeout time.Duration) *MDSClient {
	return &MDSClient{addr: addr, client: &http.Client{Timeout: timeout}}
}

// ErrNotFound is returned by GetFileMeta when the MDS reports 404.
var ErrNotFound = fmt.Errorf("file not found")

// ErrConflict is returned by CreateFile when the MDS reports 409.
var ErrConflict = fmt.Errorf("file already exists")

func (c *MDSClient) url(path string, query url.Values) string {
	u := "http://" + c.addr + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetFileMeta fetches a file's metadata plus live chunk_servers.
func (c *MDSClient) GetFileMeta(ctx context.Context, filename string) (wire.FileMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/get_file_meta", url.Values{"filename": {filename}}), nil)
	if err != nil {
		return wire.FileMeta{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return wire.FileMeta{}, fmt.Errorf("get_file_meta request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return wire.FileMeta{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return wire.FileMeta{}, fmt.Errorf("get_file_meta returned status %d", resp.StatusCode)
	}

	var out wire.GetFileMetaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.FileMeta{}, fmt.Errorf("decode get_file_meta response: %w", err)
	}
	return out.FileMeta, nil
}

// CreateFile asks the MDS to create an empty file record.
func (c *MDSClient) CreateFile(ctx context.Context, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/create_file", url.Values{"filename": {filename}}), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("create_file request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("create_file returned status %d", resp.StatusCode)
	}
}

// UpdateFileMeta commits a new length/chunks list for filename.
func (c *MDSClient) UpdateFileMeta(ctx context.Context, filename string, length int64, chunks []string) error {
	body, err := json.Marshal(wire.UpdateFileMetaRequest{Filename: filename, Length: &length, Chunks: &chunks})
	if err != nil {
		return fmt.Errorf("marshal update_file_meta: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/update_file_meta", nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update_file_meta request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update_file_meta returned status %d", resp.StatusCode)
	}
	return nil
}

// ActiveChunkServers fetches the current live chunk server list.
func (c *MDSClient) ActiveChunkServers(ctx context.Context) ([]wire.ChunkServerRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/get_active_chunk_servers", nil), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get_active_chunk_servers request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get_active_chunk_servers returned status %d", resp.StatusCode)
	}

	var out wire.ActiveChunkServersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode get_active_chunk_servers response: %w", err)
	}
	return out.ChunkServers, nil
}
