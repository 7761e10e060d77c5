package media

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"slices"
	"strings"

	"whatsflow/internal/constants"
	pkgconstants "whatsflow/pkg/constants"
)

// ValidateLink checks that a media link can be handed to the Cloud API,
// which fetches it from Meta's side. Only public http(s) hosts are allowed.
func ValidateLink(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid media URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("media URL has no host")
	}
	if strings.EqualFold(host, "localhost") || isInternalHost(host) {
		return fmt.Errorf("media host not allowed: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("media host not allowed: %s", host)
		}
	}
	return nil
}

// isInternalHost matches single-label names such as docker service names.
func isInternalHost(hostname string) bool {
	return net.ParseIP(hostname) == nil && !strings.Contains(hostname, ".")
}

// ResolveType returns the explicit media type when valid, otherwise infers
// it from the link's file extension.
func ResolveType(mediaType, rawURL string) (string, error) {
	if mediaType != "" {
		mediaType = strings.ToLower(mediaType)
		if !slices.Contains(pkgconstants.MediaTypes, mediaType) {
			return "", fmt.Errorf("unsupported media type: %q", mediaType)
		}
		return mediaType, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid media URL: %w", err)
	}
	if t, ok := constants.MediaTypeByExtension[strings.ToLower(path.Ext(u.Path))]; ok {
		return t, nil
	}
	return constants.DefaultLinkMediaType, nil
}
