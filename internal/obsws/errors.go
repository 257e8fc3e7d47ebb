package obsws

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by calls issued without an open session
	// and by calls pending when the socket goes away.
	ErrNotConnected = errors.New("obsws: not connected")
	// ErrUnexpectedMessage is returned when the handshake sees the wrong op.
	ErrUnexpectedMessage = errors.New("obsws: unexpected message")
)

// ConnectionError reports that the session could not be opened.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("obsws: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteError is a request that OBS answered with a failure status.
// Callers can use errors.As to extract the status:
//
//	var remoteErr *RemoteError
//	if errors.As(err, &remoteErr) && remoteErr.Code == StatusResourceNotFound { ... }
type RemoteError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RemoteError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("obsws: %s failed (%d)", e.RequestType, e.Code)
	}
	return fmt.Sprintf("obsws: %s failed (%d): %s", e.RequestType, e.Code, e.Comment)
}

// IsRemoteError reports whether err is a *RemoteError.
func IsRemoteError(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}

// IsConnectionError reports whether err is a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
