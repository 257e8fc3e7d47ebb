package obs

import (
	"context"
	"encoding/json"

	"github.com/obsmirror/obsmirror/internal/obsws"
)

// Transport is the request-multiplexing connection a Client drives.
// *obsws.Conn implements it.
type Transport interface {
	Connect(ctx context.Context, url, password string) error
	Disconnect() error
	Call(ctx context.Context, requestType string, data any) (json.RawMessage, error)
	CallBatch(ctx context.Context, requests []obsws.Request) ([]obsws.Response, error)
	On(kind obsws.EventKind, h obsws.Handler)
	RemoveAllListeners()
}

var _ Transport = (*obsws.Conn)(nil)
