// Package qr builds image URLs against the external qrserver.com renderer.
// The service is consumed purely by URL construction; no request is issued
// from here.
package qr

import (
	"fmt"
	"net/url"
)

const (
	baseURL     = "https://api.qrserver.com/v1/create-qr-code/"
	defaultSize = 220
)

// ImageURL returns the QR image URL for an arbitrary link at the default
// 220x220 size.
func ImageURL(link string) string {
	return ImageURLSized(link, defaultSize)
}

// ImageURLSized returns the QR image URL for a link at size x size pixels.
func ImageURLSized(link string, size int) string {
	if link == "" {
		return ""
	}
	if size <= 0 {
		size = defaultSize
	}
	return fmt.Sprintf("%s?size=%dx%d&data=%s", baseURL, size, size, url.QueryEscape(link))
}
