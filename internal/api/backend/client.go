// Package backend 封装合规后端的提交接口。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/langhaul/roadlog/internal/models"
)

// Client 后端 API 客户端。凭证由外部下发，客户端只负责携带。
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient 创建后端客户端。timeout 为单次请求的固定上限。
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
	}
}

// SetToken 更新访问凭证
func (c *Client) SetToken(token string) {
	c.token = token
}

// SubmitLocations 提交位置采样批次
func (c *Client) SubmitLocations(ctx context.Context, deviceID string, locations []json.RawMessage) error {
	return c.submit(ctx, "/v1/locations", map[string]interface{}{
		"device_id": deviceID,
		"locations": rawSlice(locations),
	})
}

// SubmitLogs 提交职责日志批次
func (c *Client) SubmitLogs(ctx context.Context, deviceID string, logs []json.RawMessage) error {
	return c.submit(ctx, "/v1/logs", map[string]interface{}{
		"device_id": deviceID,
		"logs":      rawSlice(logs),
	})
}

// SubmitEvents 提交违规事件批次
func (c *Client) SubmitEvents(ctx context.Context, deviceID string, events []json.RawMessage) error {
	return c.submit(ctx, "/v1/events", map[string]interface{}{
		"device_id": deviceID,
		"events":    rawSlice(events),
	})
}

// SubmitDvirs 提交车检报告批次
func (c *Client) SubmitDvirs(ctx context.Context, deviceID string, dvirs []json.RawMessage) error {
	return c.submit(ctx, "/v1/dvirs", map[string]interface{}{
		"device_id": deviceID,
		"dvirs":     rawSlice(dvirs),
	})
}

// Ping 探测后端可达性，供连通性监视使用
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// submit 执行一次带凭证的提交。401 类响应转为 AuthError，
// 传输失败与其它非 2xx 响应转为 NetworkError。
func (c *Client) submit(ctx context.Context, path string, body map[string]interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &models.AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &models.NetworkError{
			Op:  path,
			Err: fmt.Errorf("status=%d body=%s", resp.StatusCode, string(respBody)),
		}
	}
}

// rawSlice 保证空批次编码为 [] 而不是 null
func rawSlice(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
