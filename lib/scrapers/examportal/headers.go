package examportal

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// navHeaders is the header set for regular page loads. The provenance
// header flips to same-origin once a session exists, as a real browser's
// would after the first navigation.
func (c *Client) navHeaders() map[string]string {
	h := map[string]string{
		"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"accept-language":           "en-US,en;q=0.9",
		"cache-control":             "max-age=0",
		"sec-fetch-dest":            "document",
		"sec-fetch-mode":            "navigate",
		"sec-fetch-user":            "?1",
		"upgrade-insecure-requests": "1",
	}
	if c.initialized {
		h["sec-fetch-site"] = "same-origin"
		h["referer"] = c.entry.String()
	} else {
		h["sec-fetch-site"] = "none"
	}
	return h
}

// formHeaders is the header set for form submissions.
func (c *Client) formHeaders() map[string]string {
	h := c.navHeaders()
	delete(h, "cache-control")
	h["content-type"] = "application/x-www-form-urlencoded"
	h["origin"] = c.entry.Scheme + "://" + c.entry.Host
	h["referer"] = c.entry.String()
	h["sec-fetch-site"] = "same-origin"
	return h
}
