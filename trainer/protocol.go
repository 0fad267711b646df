package trainer

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sartorproj/arimastream/arima"
)

// Request is what the parent writes to a worker's stdin.
type Request struct {
	Values        []float64     `msgpack:"values"`
	Order         arima.Order   `msgpack:"order"`
	Options       arima.Options `msgpack:"options"`
	MemoryCeiling uint64        `msgpack:"memory_ceiling"`
}

// Response is what a successful worker writes to stdout.
type Response struct {
	Model *arima.Trained `msgpack:"model"`
}

func writeMessage(w io.Writer, v any) error {
	return msgpack.NewEncoder(w).Encode(v)
}

func readRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := msgpack.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := req.Order.Validate(); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func readResponse(r io.Reader, order arima.Order) (*arima.Trained, error) {
	var resp Response
	if err := msgpack.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if resp.Model == nil {
		return nil, fmt.Errorf("%w: no model", ErrBadResponse)
	}
	if err := resp.Model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if resp.Model.Order != order {
		return nil, fmt.Errorf("%w: got order %s, want %s", ErrBadResponse, resp.Model.Order, order)
	}
	return resp.Model, nil
}
