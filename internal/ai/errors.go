package ai

import "fmt"

// ErrorKind classifies gateway failures so callers can react without string
// matching
type ErrorKind int

const (
	// KindNoKey: neither the active provider nor any fallback has a
	// credential; no network call was attempted
	KindNoKey ErrorKind = iota
	// KindRateLimited: the provider's request window is exhausted
	KindRateLimited
	// KindProvider: the provider call failed after any permitted retry
	KindProvider
	// KindInvalidResponse: the provider answered but the text failed the
	// validity classifier
	KindInvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoKey:
		return "no_key"
	case KindRateLimited:
		return "rate_limited"
	case KindProvider:
		return "provider"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// GatewayError is the failure arm of the gateway's result
type GatewayError struct {
	Kind   ErrorKind
	Detail string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ai gateway: %s: %s", e.Kind, e.Detail)
}
