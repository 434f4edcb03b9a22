package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestClientPoll_OK(t *testing.T) {
	var gotPath, gotQuery, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotReqID = r.Header.Get(requestIDHeader)
		_, _ = w.Write([]byte(`{"balance": 10}`))
	}))
	defer srv.Close()

	c := NewClientWith(srv.URL+"/api/", time.Second)
	body, err := c.Poll(context.Background(), "portfolio/history", url.Values{"period": {"1M"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"balance": 10}` {
		t.Errorf("unexpected body %s", body)
	}
	if gotPath != "/api/portfolio/history" || gotQuery != "period=1M" {
		t.Errorf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if gotReqID == "" {
		t.Error("expected request id header")
	}
}

func TestClientPoll_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		timeout    time.Duration
		wantKind   Kind
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			wantKind:   KindServerError,
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "decode",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantKind: KindDecode,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantKind: KindDecode,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout:  50 * time.Millisecond,
			wantKind: KindNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			c := NewClientWith(srv.URL, timeout)
			_, err := c.Poll(context.Background(), "positions", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Fatalf("expected kind %v, got %v (%v)", tt.wantKind, got, err)
			}
			if tt.wantStatus != 0 {
				te := err.(*Error)
				if te.Status != tt.wantStatus {
					t.Errorf("expected status %d, got %d", tt.wantStatus, te.Status)
				}
			}
		})
	}
}

func TestClientPoll_NetworkDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClientWith(addr, time.Second)
	_, err := c.Poll(context.Background(), "account/status", nil)
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestClientPost_JSONAndEmptyReply(t *testing.T) {
	var gotBody, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClientWith(srv.URL, time.Second)
	body, err := c.Post(context.Background(), "add_ticker", map[string]string{"ticker": "AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body, got %s", body)
	}
	if gotBody != `{"ticker":"AAPL"}` {
		t.Errorf("unexpected payload %s", gotBody)
	}
	if gotCT != "application/json" {
		t.Errorf("unexpected content type %s", gotCT)
	}
}

func TestClientPostFile(t *testing.T) {
	var gotName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotContent = hdr.Filename, string(b)
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	c := NewClientWith(srv.URL, time.Second)
	if _, err := c.PostFile(context.Background(), "upload_tickers", "file", "t.csv", strings.NewReader("AAPL\nMSFT\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "t.csv" || gotContent != "AAPL\nMSFT\n" {
		t.Errorf("unexpected upload %q %q", gotName, gotContent)
	}
}
