package utils

import (
	"net/url"
	"strings"
)

// ExtractReferrerDomain derives a lowercase hostname from a raw referrer
// URL. A missing or malformed referrer yields nil, never an error, so
// session creation can proceed unconditionally.
func ExtractReferrerDomain(raw string) *string {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	host := u.Hostname()
	if host == "" {
		return nil
	}
	host = strings.ToLower(host)
	return &host
}
