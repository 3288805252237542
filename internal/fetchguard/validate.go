package fetchguard

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL rejects URLs the guard will not fetch: non-HTTP schemes,
// empty hosts, and addresses that point back into the local network.
// Arbitrary user-supplied URLs reach this code path, so loopback and
// private ranges are refused outright.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("disallowed host %q", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("disallowed address %q", host)
		}
	}

	return nil
}
