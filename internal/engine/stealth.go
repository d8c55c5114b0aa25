package engine

import (
	stealth "github.com/anatolykoptev/go-stealth"
)

// Browser fingerprint helpers shared by the page fetcher and sources/.

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }
