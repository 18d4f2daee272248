package exchange

import "errors"

// Errors returned by the exchange package.
var (
	// ErrRequestInFlight is returned when a request is issued while another
	// one is still waiting for its response.
	ErrRequestInFlight = errors.New("exchange: request in flight")

	// ErrRequestTimeout is returned when no matching response arrives in time.
	ErrRequestTimeout = errors.New("exchange: request timed out")

	// ErrConnectionClosed is returned for requests pending or issued after
	// the underlying connection closed.
	ErrConnectionClosed = errors.New("exchange: connection closed")
)
