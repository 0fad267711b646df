package autoarima

import (
	"cmp"
	"slices"

	"github.com/sartorproj/arimastream/arima"
)

// Bounds limits the candidate orders. A non-nil fixed value collapses its
// dimension to that single value, zero included.
type Bounds struct {
	MaxP     int
	MaxD     int
	MaxQ     int
	MaxSP    int
	MaxSD    int
	MaxSQ    int
	MaxOrder int // upper bound on p+q+P+Q, 0 disables it
	M        int // seasonal period, <= 1 for non-seasonal models

	P  *int
	D  *int
	Q  *int
	SP *int
	SD *int
	SQ *int
}

// DefaultBounds returns the default search space.
func DefaultBounds() Bounds {
	return Bounds{
		MaxP:     5,
		MaxD:     2,
		MaxQ:     5,
		MaxSP:    2,
		MaxSD:    1,
		MaxSQ:    2,
		MaxOrder: 5,
	}
}

// Fixed returns a pointer suitable for fixing a Bounds dimension.
func Fixed(v int) *int {
	return &v
}

func dimension(fixed *int, maxV int) []int {
	if fixed != nil {
		return []int{*fixed}
	}
	values := make([]int, 0, max(maxV, 0)+1)
	for v := 0; v <= maxV || v == 0; v++ {
		values = append(values, v)
	}
	return values
}

// Grid enumerates every candidate order within b, lightest first.
func Grid(b Bounds) []arima.Order {
	ps, ds, qs := dimension(b.P, b.MaxP), dimension(b.D, b.MaxD), dimension(b.Q, b.MaxQ)
	sps, sds, sqs := []int{0}, []int{0}, []int{0}
	m := 0
	if b.M > 1 {
		m = b.M
		sps, sds, sqs = dimension(b.SP, b.MaxSP), dimension(b.SD, b.MaxSD), dimension(b.SQ, b.MaxSQ)
	}

	var orders []arima.Order
	for _, p := range ps {
		for _, d := range ds {
			for _, q := range qs {
				for _, sp := range sps {
					for _, sd := range sds {
						for _, sq := range sqs {
							if b.MaxOrder > 0 && p+q+sp+sq > b.MaxOrder {
								continue
							}
							orders = append(orders, arima.Order{P: p, D: d, Q: q, SP: sp, SD: sd, SQ: sq, M: m})
						}
					}
				}
			}
		}
	}

	slices.SortStableFunc(orders, func(a, b arima.Order) int {
		return cmp.Or(
			cmp.Compare(Weight(a), Weight(b)),
			cmp.Compare(a.P, b.P),
			cmp.Compare(a.D, b.D),
			cmp.Compare(a.Q, b.Q),
			cmp.Compare(a.SP, b.SP),
			cmp.Compare(a.SD, b.SD),
			cmp.Compare(a.SQ, b.SQ),
		)
	})
	return orders
}

// Weight ranks orders by expected fitting cost: any seasonal term costs 1000,
// regular terms grow quadratically and seasonal terms cubically.
func Weight(o arima.Order) int {
	w := o.P*o.P + o.D*o.D + o.Q*o.Q + o.SP*o.SP*o.SP + 2*o.SD*o.SD*o.SD + 3*o.SQ*o.SQ*o.SQ
	if o.SP+o.SD+o.SQ > 0 {
		w += 1000
	}
	return w
}
