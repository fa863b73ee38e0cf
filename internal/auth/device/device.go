// Package device turns login user agents into short labels for audit logs.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Client describes the software a login came from.
type Client struct {
	Browser string
	OS      string
	Mobile  bool
}

func Describe(userAgent string) Client {
	if strings.TrimSpace(userAgent) == "" {
		return Client{}
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	return Client{
		Browser: strings.TrimSpace(browser),
		OS:      strings.TrimSpace(ua.OS()),
		Mobile:  ua.Mobile(),
	}
}

// ParseUserAgent returns a display name such as "Chrome on Linux x86_64".
func ParseUserAgent(userAgent string) string {
	c := Describe(userAgent)
	if c.Browser == "" && c.OS == "" {
		return "Unknown Device"
	}
	browser, os := c.Browser, c.OS
	if browser == "" {
		browser = "Unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return browser + " on " + os
}
