package domain

import "net/http"

// IsEmptyBodyStatus reports whether status forbids a response body.
func IsEmptyBodyStatus(status int) bool {
	switch status {
	case http.StatusNoContent, http.StatusResetContent, http.StatusNotModified:
		return true
	default:
		return false
	}
}

// IsRedirectStatus reports whether status is a redirect carrying a Location.
func IsRedirectStatus(status int) bool {
	switch status {
	case http.StatusMultipleChoices,
		http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusUseProxy,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// IsValidStatus reports whether status is within the three-digit range
// accepted on the wire.
func IsValidStatus(status int) bool {
	return status >= 100 && status <= 999
}
