package channel

import (
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// VerifyRequest checks the X-Slack-Signature of a request body against the
// signing secret. Requests whose X-Slack-Request-Timestamp is more than five
// minutes away from now are rejected.
func VerifyRequest(header http.Header, body []byte, signingSecret string) error {
	if signingSecret == "" {
		return fmt.Errorf("verify request: signing secret is not configured")
	}
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return fmt.Errorf("verify request: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("verify request: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("verify request: %w", err)
	}
	return nil
}
