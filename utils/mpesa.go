package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MpesaConfig carries every setting the Daraja client needs. It is built once
// at startup and injected; the client itself never reads the environment.
type MpesaConfig struct {
	BaseURL         string // e.g. https://sandbox.safaricom.co.ke
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	CallbackURL     string
	AccountRef      string
	TransactionDesc string
}

// MpesaConfigFromEnv assembles the config from MPESA_* environment variables.
func MpesaConfigFromEnv() MpesaConfig {
	base := strings.TrimRight(os.Getenv("MPESA_BASE_URL"), "/")
	if base == "" {
		base = "https://sandbox.safaricom.co.ke"
	}
	accountRef := os.Getenv("MPESA_ACCOUNT_REF")
	if accountRef == "" {
		accountRef = "GlobalConnect"
	}
	desc := os.Getenv("MPESA_TRANSACTION_DESC")
	if desc == "" {
		desc = "Product purchase"
	}
	return MpesaConfig{
		BaseURL:         base,
		ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:       os.Getenv("MPESA_SHORTCODE"),
		Passkey:         os.Getenv("MPESA_PASSKEY"),
		CallbackURL:     os.Getenv("MPESA_CALLBACK_URL"),
		AccountRef:      accountRef,
		TransactionDesc: desc,
	}
}

// UpstreamAuthError: the OAuth credential endpoint rejected us or returned
// garbage. Distinct from UpstreamError so callers can tell a credential
// problem from a push problem.
type UpstreamAuthError struct {
	Status int
	Cause  error
}

func (e *UpstreamAuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mpesa auth: %v", e.Cause)
	}
	return fmt.Sprintf("mpesa auth: unexpected status %d", e.Status)
}

func (e *UpstreamAuthError) Unwrap() error { return e.Cause }

// UpstreamError: the gateway was unreachable, timed out, or returned a body
// we cannot interpret. The push must be treated as failed, not unknown.
type UpstreamError struct {
	Op    string
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mpesa %s: %v", e.Op, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// STKRejection: the gateway answered but declined the push. Correlation ids
// may be absent on a rejection.
type STKRejection struct {
	Code   string
	Detail string
}

func (e *STKRejection) Error() string {
	return fmt.Sprintf("stk push rejected: code=%s %s", e.Code, e.Detail)
}

// STKPushResponse is the decoded processrequest body for an accepted push.
// ResponseCode "0" means the prompt is pending on the customer's phone, not
// that payment happened.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// MpesaClient talks to the Daraja OAuth and STK push endpoints. Safe for
// concurrent use; the bearer token is cached until shortly before expiry.
type MpesaClient struct {
	cfg    MpesaConfig
	client *http.Client

	// fetchMu serializes credential fetches; mu only guards the cached
	// token so readers never wait behind an in-flight network call.
	fetchMu     sync.Mutex
	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func NewMpesaClient(cfg MpesaConfig, client *http.Client) *MpesaClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MpesaClient{cfg: cfg, client: client}
}

// Token returns a bearer credential, fetching a fresh one when the cached
// token is missing or within the safety margin of its declared expiry.
func (m *MpesaClient) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cachedCredential(); ok {
		return tok, nil
	}

	m.fetchMu.Lock()
	defer m.fetchMu.Unlock()
	// another caller may have refreshed while we waited for the fetch lock
	if tok, ok := m.cachedCredential(); ok {
		return tok, nil
	}

	url := m.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &UpstreamAuthError{Cause: err}
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &UpstreamAuthError{Cause: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamAuthError{Status: resp.StatusCode}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &UpstreamAuthError{Cause: fmt.Errorf("parse token: %w", err)}
	}
	if tok.AccessToken == "" {
		return "", &UpstreamAuthError{Cause: fmt.Errorf("empty access_token in response")}
	}

	ttl := 3600 * time.Second
	if tok.ExpiresIn != "" {
		var secs int
		if _, err := fmt.Sscanf(tok.ExpiresIn, "%d", &secs); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	// refetch one minute early so a token never expires mid-push
	margin := time.Minute
	if ttl <= margin {
		margin = ttl / 2
	}
	m.mu.Lock()
	m.cachedToken = tok.AccessToken
	m.tokenExpiry = time.Now().Add(ttl - margin)
	m.mu.Unlock()
	return tok.AccessToken, nil
}

func (m *MpesaClient) cachedCredential() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cachedToken != "" && time.Now().Before(m.tokenExpiry) {
		return m.cachedToken, true
	}
	return "", false
}

// InvalidateToken drops the cached credential so the next call refetches.
func (m *MpesaClient) InvalidateToken() {
	m.mu.Lock()
	m.cachedToken = ""
	m.tokenExpiry = time.Time{}
	m.mu.Unlock()
}

func mpesaTimestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// stkPassword is base64(shortcode + passkey + timestamp) as Daraja requires.
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// InitiateSTKPush asks the gateway to prompt the given phone for amount.
// Returns the decoded acceptance, a *STKRejection when the gateway declines,
// or *UpstreamError / *UpstreamAuthError when the call itself fails.
func (m *MpesaClient) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*STKPushResponse, error) {
	accessToken, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := mpesaTimestamp(time.Now())
	payload := map[string]interface{}{
		"BusinessShortCode": m.cfg.Shortcode,
		"Password":          stkPassword(m.cfg.Shortcode, m.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            json.Number(amount.String()),
		"PartyA":            phone,
		"PartyB":            m.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       m.cfg.CallbackURL,
		"AccountReference":  m.cfg.AccountRef,
		"TransactionDesc":   m.cfg.TransactionDesc,
	}
	body, _ := json.Marshal(payload)

	url := m.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Op: "stkpush", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "stkpush", Cause: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var result STKPushResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &UpstreamError{Op: "stkpush", Cause: fmt.Errorf("parse response: %w (body: %s)", err, string(respBody))}
	}
	if result.ResponseCode == "" {
		// error bodies from Daraja carry errorCode/errorMessage instead
		var darajaErr struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if json.Unmarshal(respBody, &darajaErr) == nil && darajaErr.ErrorMessage != "" {
			return nil, &UpstreamError{Op: "stkpush", Cause: fmt.Errorf("%s: %s", darajaErr.ErrorCode, darajaErr.ErrorMessage)}
		}
		return nil, &UpstreamError{Op: "stkpush", Cause: fmt.Errorf("missing ResponseCode (body: %s)", string(respBody))}
	}
	if result.ResponseCode != "0" {
		return nil, &STKRejection{Code: result.ResponseCode, Detail: result.ResponseDescription}
	}
	return &result, nil
}
