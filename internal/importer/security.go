package importer

import (
	"fmt"
	"net/url"
	"strings"
)

// requireTLS rejects addresses that are not https URLs
func requireTLS(kind, address string) error {
	u, err := url.Parse(address)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return fmt.Errorf("%w: %s %q must use https", ErrInsecureSource, kind, address)
	}
	return nil
}
