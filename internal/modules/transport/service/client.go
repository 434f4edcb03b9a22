package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
	"trade_desk/internal/modules/config"
	"trade_desk/pkg/logger"
	"trade_desk/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// Client — pull-канал: один запрос — один ответ, без ретраев и без мержа.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return NewClientWith(cfg.Backend.BaseURL, cfg.Poll.Timeout)
}

func NewClientWith(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Poll — GET <base>/<resource>?params. Возвращает тело, гарантированно валидный JSON.
func (c *Client) Poll(ctx context.Context, resource string, params url.Values) ([]byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, resource, u, nil, "")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewDecodeError(resource, fmt.Errorf("empty body"))
	}
	return body, nil
}

// Post — POST с JSON-телом. Пустой ответ допустим (команды часто отвечают 204).
func (c *Client) Post(ctx context.Context, resource string, payload any) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", resource, err)
		}
		rdr = bytes.NewReader(b)
	}
	u := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	return c.do(ctx, http.MethodPost, resource, u, rdr, "application/json")
}

// PostFile — multipart/form-data с одним файлом в поле field.
func (c *Client) PostFile(ctx context.Context, resource, field, filename string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("multipart %s: %w", resource, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("multipart %s: %w", resource, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart %s: %w", resource, err)
	}
	u := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	return c.do(ctx, http.MethodPost, resource, u, &buf, mw.FormDataContentType())
}

func (c *Client) do(ctx context.Context, method, resource, u string, body io.Reader, contentType string) (out []byte, err error) {
	span, ctx := tracing.StartSpan(ctx, strings.ToLower(method)+" "+resource)
	defer func() {
		if err != nil {
			span.SetTag("transport.kind", KindOf(err).String())
		}
		tracing.Finish(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, NewNetworkError(resource, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	span.SetTag("request.id", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewNetworkError(resource, err)
	}
	defer resp.Body.Close()
	span.SetTag("http.status_code", resp.StatusCode)

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(resource, err)
	}
	if resp.StatusCode/100 != 2 {
		logger.Debug("[HTTP] %s %s -> %d", method, resource, resp.StatusCode)
		return nil, NewServerError(resource, resp.StatusCode, string(rb))
	}
	if len(bytes.TrimSpace(rb)) > 0 {
		var probe any
		if err := sonic.Unmarshal(rb, &probe); err != nil {
			return nil, NewDecodeError(resource, err)
		}
	}
	return rb, nil
}
