// Package outbound is the single shared HTTPS client the process-wide
// Request Queue drives to talk to the Wire platform on behalf of every
// bot. One *http.Client is built once in New and reused for every call.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dsonbaker/wirebot/internal/errs"
	"github.com/dsonbaker/wirebot/internal/wire"
)

// Client is the single HTTPS client shared by every SendEncryptedMessage
// call the Request Queue drains. It carries no per-bot state; the
// bearer token is supplied per call since one process hosts many bots.
type Client struct {
	http    *http.Client
	baseURL string
}

// New builds a Client against baseURL. A nil transport uses
// http.DefaultTransport; a non-nil one replaces it for every call. The
// package tests pass nil and point baseURL at an httptest.Server.
func New(baseURL string, timeout time.Duration, transport http.RoundTripper) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout, Transport: transport},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request body: %v", errs.Protocol, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", errs.Network, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Network, err)
	}
	return resp, nil
}

// SendMessage posts an encrypted fan-out to POST /bot/messages. A 412
// response is not an error: it returns the platform's reported missing
// devices so internal/delivery can run its single recovery round.
func (c *Client) SendMessage(ctx context.Context, token string, req wire.MessageRequest) (*wire.Devices, error) {
	resp, err := c.do(ctx, http.MethodPost, "/bot/messages?ignore_missing=false", token, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil, nil
	case http.StatusPreconditionFailed:
		var devices wire.Devices
		if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
			return nil, fmt.Errorf("%w: decode missing-devices body: %v", errs.Protocol, err)
		}
		return &devices, nil
	default:
		return nil, fmt.Errorf("%w: POST /bot/messages returned %d", errs.Protocol, resp.StatusCode)
	}
}

// GetPreKeys fetches one fresh prekey per (user, client) pair listed in
// missing, via POST /bot/users/prekeys.
func (c *Client) GetPreKeys(ctx context.Context, token string, missing map[string][]string) (wire.DevicePreKeys, error) {
	resp, err := c.do(ctx, http.MethodPost, "/bot/users/prekeys", token, wire.Devices{Missing: missing})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: POST /bot/users/prekeys returned %d", errs.Protocol, resp.StatusCode)
	}
	var out wire.DevicePreKeys
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode prekeys body: %v", errs.Protocol, err)
	}
	return out, nil
}

// UploadAsset posts ciphertext asset bytes via POST /bots/assets as a
// multipart/mixed body: a JSON metadata part (public flag, retention) and
// the raw ciphertext part, returning the platform-assigned {key, token}.
func (c *Client) UploadAsset(ctx context.Context, token string, ciphertext []byte, public bool) (*wire.AssetUploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, err := w.CreatePart(map[string][]string{
		"Content-Type": {"application/json; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create metadata part: %v", errs.Protocol, err)
	}
	if _, err := meta.Write([]byte(fmt.Sprintf(`{"public":%t,"retention":"persistent"}`, public))); err != nil {
		return nil, fmt.Errorf("%w: write metadata part: %v", errs.Protocol, err)
	}

	data, err := w.CreatePart(map[string][]string{
		"Content-Type":              {"application/octet-stream"},
		"Content-MD5":               {""},
		"Content-Transfer-Encoding": {"binary"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create data part: %v", errs.Protocol, err)
	}
	if _, err := data.Write(ciphertext); err != nil {
		return nil, fmt.Errorf("%w: write data part: %v", errs.Protocol, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart writer: %v", errs.Protocol, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bots/assets", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", errs.Network, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "multipart/mixed; boundary="+w.Boundary())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: POST /bots/assets returned %d", errs.Protocol, resp.StatusCode)
	}
	var out wire.AssetUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode asset upload response: %v", errs.Protocol, err)
	}
	return &out, nil
}
