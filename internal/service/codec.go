package service

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// jsonCodec serializes the plain Go messages of this package. Connect's
// built-in JSON codec only accepts generated protobuf types.
type jsonCodec struct {
	name string
}

func (c jsonCodec) Name() string { return c.name }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

var (
	codecJSON        = jsonCodec{name: "json"}
	codecJSONCharset = jsonCodec{name: "json; charset=utf-8"}
)

// handlerOptions prepends the JSON codecs to opts.
func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{
		connect.WithCodec(codecJSON),
		connect.WithCodec(codecJSONCharset),
	}, opts...)
}

// NewClient returns a unary Connect client for one procedure that speaks
// the JSON encoding served by this package.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{connect.WithCodec(codecJSON)}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}

// unary registers a handler for procedure on mux.
func unary[Req, Res any](mux *http.ServeMux, procedure string, fn func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}
