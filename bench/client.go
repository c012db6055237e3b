// Package bench holds the HTTP client setup shared by the load tools.
package bench

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Account is a signed up user and its bearer token.
type Account struct {
	UserID string
	Token  string
}

// NewClient builds an HTTP client. certFile/keyFile enable mTLS when set.
func NewClient(certFile, keyFile string, insecure bool) (*http.Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec // self-signed dev certs
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
		Timeout:   10 * time.Second,
	}, nil
}

// Do sends a JSON request and decodes a JSON response into out when out is non-nil.
func Do(ctx context.Context, client *http.Client, method, url, token string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// Signup creates a user with a unique nickname and returns its token.
func Signup(ctx context.Context, client *http.Client, server, prefix string, i int) (Account, error) {
	suffix := time.Now().UnixNano() % 1_000_000_000
	payload := map[string]any{
		"nickname": fmt.Sprintf("%s%d_%d", prefix, i, suffix),
		"email":    fmt.Sprintf("%s%d_%d@bench.local", prefix, i, suffix),
		"pw":       "bench-password",
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	if _, err := Do(ctx, client, http.MethodPost, server+"/users", "", payload, &resp); err != nil {
		return Account{}, err
	}
	return Account{UserID: resp.User.ID, Token: resp.Token}, nil
}
