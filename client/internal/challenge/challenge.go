// Package challenge parses dynamic authentication challenges. A server that
// wants an interactive credential exchange instead of rejecting the client
// outright sends an AUTH_FAILED reason of the form
//
//	CRV1:<flags>:<state-id>:<base64 username>:<challenge text>
//
// where flags is a comma-separated subset of R (a response is required) and
// E (echo the response while typing).
package challenge

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const dynamicPrefix = "CRV1:"

// Dynamic is a parsed CRV1 challenge.
type Dynamic struct {
	// StateID is the opaque server state the response must echo back.
	StateID string
	// Username is the decoded account name the challenge applies to.
	Username string
	// Text is the prompt to show the user.
	Text string
	// ResponseRequired is the R flag.
	ResponseRequired bool
	// Echo is the E flag.
	Echo bool
}

// IsDynamic reports whether an AUTH_FAILED reason carries a dynamic
// challenge rather than a plain rejection.
func IsDynamic(reason string) bool {
	return strings.HasPrefix(reason, dynamicPrefix)
}

// Parse decodes a CRV1 reason string.
func Parse(reason string) (*Dynamic, error) {
	if !IsDynamic(reason) {
		return nil, fmt.Errorf("not a dynamic challenge: %q", reason)
	}

	// The challenge text may itself contain colons, so split off the four
	// leading fields only.
	parts := strings.SplitN(reason, ":", 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("malformed dynamic challenge: expected 5 fields, got %d", len(parts))
	}

	user, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("decode challenge username: %w", err)
	}

	d := &Dynamic{
		StateID:  parts[2],
		Username: string(user),
		Text:     parts[4],
	}
	for _, f := range strings.Split(parts[1], ",") {
		switch f {
		case "R":
			d.ResponseRequired = true
		case "E":
			d.Echo = true
		}
	}
	return d, nil
}
