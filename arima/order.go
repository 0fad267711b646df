// Package arima implements seasonal ARIMA models fitted by conditional sum of squares.
package arima

import (
	"errors"
	"fmt"
)

// Order represents a SARIMA order (p, d, q) x (P, D, Q, m).
// An order with M <= 1 is non-seasonal and carries no seasonal terms.
type Order struct {
	P  int `msgpack:"p" json:"p"`   // AR order
	D  int `msgpack:"d" json:"d"`   // differencing order
	Q  int `msgpack:"q" json:"q"`   // MA order
	SP int `msgpack:"sp" json:"sp"` // seasonal AR order
	SD int `msgpack:"sd" json:"sd"` // seasonal differencing order
	SQ int `msgpack:"sq" json:"sq"` // seasonal MA order
	M  int `msgpack:"m" json:"m"`   // seasonal period
}

// Seasonal reports whether the order has a seasonal period.
func (o Order) Seasonal() bool {
	return o.M > 1
}

// NumParams is the number of estimated coefficients including the mean.
func (o Order) NumParams() int {
	return o.P + o.Q + o.SP + o.SQ + 1
}

// Lost is the number of leading observations consumed by differencing.
func (o Order) Lost() int {
	return o.D + o.SD*o.M
}

// Validate checks that the order is well formed.
func (o Order) Validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 || o.SP < 0 || o.SD < 0 || o.SQ < 0 || o.M < 0 {
		return fmt.Errorf("order %s: negative component", o)
	}
	if !o.Seasonal() && o.SP+o.SD+o.SQ > 0 {
		return errors.New("seasonal terms require a period greater than 1")
	}
	return nil
}

func (o Order) String() string {
	if o.Seasonal() {
		return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d)[%d]", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
	}
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}
