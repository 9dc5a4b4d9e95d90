package indieauth

import (
	"fmt"
	"strings"
)

const (
	Product = "micropub-bridge"
	Version = "1.0.0"
	Contact = "https://github.com/jamestelfer/micropub-bridge"
)

// UserAgent builds the client signature sent to token endpoints. The
// embedder's own product token, when supplied, precedes ours.
func UserAgent(prefix string) string {
	ua := fmt.Sprintf("%s/%s (%s)", Product, Version, Contact)

	if prefix = strings.TrimSpace(prefix); prefix != "" {
		ua = prefix + " " + ua
	}

	return ua
}
