package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haskel/cplxfox/internal/server"
)

// Client is an HTTP client for the cplxfox API
type Client struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
	token    string
}

// NewClient creates a client from the global flags
func NewClient() *Client {
	return &Client{
		baseURL: GetServerURL(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		user:     user,
		password: password,
		token:    adminToken,
	}
}

func (c *Client) Get(path string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}

	return c.do(req)
}

// Post performs a POST request with JSON body
func (c *Client) Post(path string, body any) ([]byte, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.user != "" && c.password != "":
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return data, resp.StatusCode, nil
}

// Health checks if server is running
func (c *Client) Health() error {
	_, status, err := c.Get("/health")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("server returned status %d", status)
	}
	return nil
}

// Predict asks the server to evaluate a raw parameter string.
func (c *Client) Predict(task, parameters string) (*server.PredictResponse, error) {
	data, status, err := c.Post("/v1/predict", server.PredictRequest{
		Task:       task,
		Parameters: parameters,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, data)
	}

	var resp server.PredictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func (c *Client) Status() (*server.StatusResponse, error) {
	data, status, err := c.Get("/status")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, data)
	}

	var resp server.StatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Reload asks the server to load the artifact again.
func (c *Client) Reload() (*server.ReloadResponse, error) {
	data, status, err := c.Post("/v1/reload", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, data)
	}

	var resp server.ReloadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// responseError prefers the server's JSON error message over the raw body.
func responseError(status int, data []byte) error {
	var e server.ErrorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned status %d: %s", status, e.Error)
	}
	return fmt.Errorf("server returned status %d: %s", status, strings.TrimSpace(string(data)))
}
