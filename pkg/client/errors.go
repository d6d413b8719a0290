package client

import (
	"errors"
	"fmt"
)

// TransportError is a failure to get a well-formed answer: network errors,
// non-2xx statuses and undecodable bodies. It is never retried.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected HTTP status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an error envelope returned by the backend.
type ProtocolError struct {
	Endpoint string
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// GenericErrorMessage is shown for transport failures.
const GenericErrorMessage = "The search service could not be reached. Please try again later."

// UserMessage returns the text to show for err: the backend's own message
// for protocol errors, a generic one for transport errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if IsTransport(err) {
		return GenericErrorMessage
	}
	return err.Error()
}
