/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// RelayRequest is the body accepted by the same-origin relay endpoint.
type RelayRequest struct {
	URL      string `json:"url"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

var ErrRelayParams = errors.New("missing required parameters")

func (r RelayRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" || strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.APIToken) == "" {
		return ErrRelayParams
	}
	return nil
}

// HostAllowed reports whether the relay may forward to the request URL. Entries are exact
// hosts or "*.suffix" wildcards; an empty list allows nothing. Loopback, link-local and
// private addresses pass only when listed exactly.
func (r RelayRequest) HostAllowed(allowed []string) bool {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	internal := internalHost(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a {
			return true
		}
		if !internal && strings.HasPrefix(a, "*.") && strings.HasSuffix(host, a[1:]) {
			return true
		}
	}
	return false
}

func internalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified()
}

// Forward performs the relayed GET and returns the raw upstream body.
func Forward(ctx context.Context, hc *http.Client, r RelayRequest) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return fetch(ctx, hc, r.URL, r.Email, r.APIToken)
}

func basicAuth(email, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+secret))
}

func fetch(ctx context.Context, hc *http.Client, u, email, secret string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", basicAuth(email, secret))
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira request: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jira read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}
