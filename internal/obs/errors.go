package obs

import "errors"

// ErrNotReady is returned by operations issued while the client is not
// in StateReady.
var ErrNotReady = errors.New("obs: client not ready")
