package extraction

import "errors"

// Sentinel errors for the extraction pipeline. Callers match with errors.Is;
// the HTTP layer surfaces all of them as 500 with the wrapped message.
var (
	// ErrTimeout indicates the provider did not answer within the request timeout
	ErrTimeout = errors.New("extraction request timed out")

	// ErrUnauthorized indicates the provider rejected the configured API key
	ErrUnauthorized = errors.New("extraction API key is invalid or missing")

	// ErrQuotaExceeded indicates the provider refused the call for quota or rate-limit reasons
	ErrQuotaExceeded = errors.New("extraction API quota exceeded")

	// ErrProvider covers any other provider-side failure; the provider's message is wrapped in
	ErrProvider = errors.New("extraction provider error")

	// ErrMalformedResponse indicates the provider reply contained no parsable JSON
	ErrMalformedResponse = errors.New("failed to parse receipt data")
)
