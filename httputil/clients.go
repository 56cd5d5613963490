package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for the booking site
	API      *http.Client // direct, for Apify and other APIs
}

func NewClients(proxyURL string) *Clients {
	scraping := &http.Client{Timeout: 15 * time.Second}

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			scraping.Transport = &http.Transport{
				Proxy: http.ProxyURL(parsed),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 60 * time.Second},
	}
}
