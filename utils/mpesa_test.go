package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testConfig(baseURL string) MpesaConfig {
	return MpesaConfig{
		BaseURL:         baseURL,
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Shortcode:       "174379",
		Passkey:         "passkey",
		CallbackURL:     "https://example.com/api/orders/mpesa/callback",
		AccountRef:      "GlobalConnect",
		TransactionDesc: "Product purchase",
	}
}

func fakeDaraja(t *testing.T, pushStatus int, pushBody interface{}) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-123",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(pushStatus)
		_ = json.NewEncoder(w).Encode(pushBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestMpesaTimestampFormat(t *testing.T) {
	ts := mpesaTimestamp(time.Date(2025, 3, 7, 9, 5, 2, 0, time.UTC))
	if ts != "20250307090502" {
		t.Fatalf("unexpected timestamp %q", ts)
	}
}

func TestStkPassword(t *testing.T) {
	got := stkPassword("174379", "passkey", "20250307090502")
	want := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20250307090502"))
	if got != want {
		t.Fatalf("password mismatch: got %q want %q", got, want)
	}
}

func TestTokenCaching(t *testing.T) {
	srv, tokenCalls := fakeDaraja(t, http.StatusOK, map[string]string{
		"MerchantRequestID":   "m-1",
		"CheckoutRequestID":   "c-1",
		"ResponseCode":        "0",
		"ResponseDescription": "Success",
	})
	client := NewMpesaClient(testConfig(srv.URL), srv.Client())

	for i := 0; i < 3; i++ {
		if _, err := client.Token(context.Background()); err != nil {
			t.Fatalf("token fetch %d: %v", i, err)
		}
	}
	if *tokenCalls != 1 {
		t.Fatalf("expected a single upstream token fetch, got %d", *tokenCalls)
	}
}

func TestTokenConcurrentFetch(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-123",
			"expires_in":   "3599",
		})
	}))
	t.Cleanup(srv.Close)
	client := NewMpesaClient(testConfig(srv.URL), srv.Client())

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Token(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent token fetch: %v", err)
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("expected one upstream fetch for concurrent callers, got %d", got)
	}
}

func TestTokenAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := NewMpesaClient(testConfig(srv.URL), srv.Client())
	_, err := client.Token(context.Background())
	var authErr *UpstreamAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected UpstreamAuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401 on error, got %d", authErr.Status)
	}
}

func TestInitiateSTKPushAccept(t *testing.T) {
	srv, _ := fakeDaraja(t, http.StatusOK, map[string]string{
		"MerchantRequestID":   "m-42",
		"CheckoutRequestID":   "ws_CO_42",
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
	client := NewMpesaClient(testConfig(srv.URL), srv.Client())

	resp, err := client.InitiateSTKPush(context.Background(), "254712345678", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_42" || resp.MerchantRequestID != "m-42" {
		t.Fatalf("correlation ids not propagated: %+v", resp)
	}
}

func TestInitiateSTKPushRejection(t *testing.T) {
	srv, _ := fakeDaraja(t, http.StatusOK, map[string]string{
		"ResponseCode":        "1",
		"ResponseDescription": "Insufficient balance on the shortcode",
	})
	client := NewMpesaClient(testConfig(srv.URL), srv.Client())

	_, err := client.InitiateSTKPush(context.Background(), "254712345678", decimal.NewFromInt(100))
	var rej *STKRejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected STKRejection, got %v", err)
	}
	if rej.Code != "1" {
		t.Fatalf("expected rejection code 1, got %q", rej.Code)
	}
}

func TestInitiateSTKPushErrorBody(t *testing.T) {
	srv, _ := fakeDaraja(t, http.StatusBadRequest, map[string]string{
		"errorCode":    "400.002.02",
		"errorMessage": "Bad Request - Invalid Timestamp",
	})
	client := NewMpesaClient(testConfig(srv.URL), srv.Client())

	_, err := client.InitiateSTKPush(context.Background(), "254712345678", decimal.NewFromInt(100))
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestInitiateSTKPushUnreachable(t *testing.T) {
	srv, _ := fakeDaraja(t, http.StatusOK, map[string]string{"ResponseCode": "0"})
	cfg := testConfig(srv.URL)
	client := NewMpesaClient(cfg, srv.Client())
	if _, err := client.Token(context.Background()); err != nil {
		t.Fatalf("warm token: %v", err)
	}
	srv.Close()

	_, err := client.InitiateSTKPush(context.Background(), "254712345678", decimal.NewFromInt(100))
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError on connection failure, got %v", err)
	}
}
