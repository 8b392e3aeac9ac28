package validation

import (
	"math"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// UserIDPattern defines the valid user id format: alphanumeric, hyphens, underscores.
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// EcosystemTypePattern defines the valid ecosystem type format: lower-case letters,
// hyphens and underscores.
var EcosystemTypePattern = regexp.MustCompile(`^[a-z][a-z_-]*$`)

// WalletPattern defines a 0x-prefixed 20-byte hex address.
var WalletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateUserID checks if a user id matches the allowed pattern.
func ValidateUserID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return UserIDPattern.MatchString(id)
}

// ValidateEcosystemType checks a normalized ecosystem type.
func ValidateEcosystemType(t string) bool {
	if t == "" || len(t) > 32 {
		return false
	}
	return EcosystemTypePattern.MatchString(t)
}

// ValidateWalletAddress checks for a 0x-prefixed 40 hex digit address.
func ValidateWalletAddress(addr string) bool {
	return WalletPattern.MatchString(addr)
}

// ParseLatitude parses a latitude in degrees within [-90, 90].
func ParseLatitude(s string) (float64, bool) {
	return parseRange(s, -90, 90)
}

// ParseLongitude parses a longitude in degrees within [-180, 180].
func ParseLongitude(s string) (float64, bool) {
	return parseRange(s, -180, 180)
}

// ParseArea parses a strictly positive, finite area.
func ParseArea(s string) (float64, bool) {
	v, ok := parseFinite(s)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseRange(s string, lo, hi float64) (float64, bool) {
	v, ok := parseFinite(s)
	if !ok || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidateURL reports whether urlStr is an absolute http(s) URL. The message
// explains the first problem found.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}
	if u.Host == "" {
		return false, "URL must have a valid host"
	}
	return true, ""
}

// metadataIPs are cloud instance metadata endpoints outside the private ranges.
var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("168.63.129.16"),
}

// IsPrivateIP reports whether ip is loopback, link-local, private, unspecified
// or a cloud metadata address.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	for _, m := range metadataIPs {
		if ip.Equal(m) {
			return true
		}
	}
	return false
}

// IsPrivateHost resolves host (port optional) and reports whether any of its
// addresses is private. Unresolvable hosts count as private.
func IsPrivateHost(host string) (bool, error) {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return true, err
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return true, nil
		}
	}
	return false, nil
}

// ValidateURLForFetch is ValidateURL plus a check that the server will not be
// made to download from an internal address.
func ValidateURLForFetch(urlStr string) (bool, string) {
	if ok, msg := ValidateURL(urlStr); !ok {
		return false, msg
	}
	u, _ := url.Parse(urlStr)
	private, err := IsPrivateHost(u.Host)
	if err != nil {
		return false, "Cannot resolve hostname"
	}
	if private {
		return false, "URL points to a private or reserved IP address"
	}
	return true, ""
}
