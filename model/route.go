package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurvePoint is one point on a route's liquidity curve: sending Source units
// at the hop yields Destination units at the far end.
type CurvePoint struct {
	Source      int64 `json:"source"`
	Destination int64 `json:"destination"`
}

// Route is produced by the routing collaborator and consumed, never stored
// long-term, by the transfer router.
type Route struct {
	SourceAddress      Address      `json:"source_address"` // connector account on the next-hop ledger
	DestinationAddress Address      `json:"destination_address"`
	ExpiresAt          time.Time    `json:"expires_at,omitempty"`
	Curve              []CurvePoint `json:"curve,omitempty"`
}

// interpolateCurve computes y0 + (y1-y0)*(x-x0)/(x1-x0) in decimal, floored.
// Curve points can sit anywhere in the int64 range, so the intermediate
// product must not run through int64 arithmetic.
func interpolateCurve(x, x0, x1, y0, y1 int64) int64 {
	if x1 == x0 {
		return y1
	}
	delta := decimal.NewFromInt(y1 - y0)
	frac := decimal.NewFromInt(x - x0)
	span := decimal.NewFromInt(x1 - x0)
	return decimal.NewFromInt(y0).Add(delta.Mul(frac).Div(span)).Floor().IntPart()
}

// AmountAt interpolates the destination amount for a source amount along the
// liquidity curve. Routes without a curve pass the amount through unchanged.
func (r *Route) AmountAt(source int64) int64 {
	if len(r.Curve) == 0 {
		return source
	}
	if source <= r.Curve[0].Source {
		return r.Curve[0].Destination
	}
	for i := 1; i < len(r.Curve); i++ {
		if source <= r.Curve[i].Source {
			prev, next := r.Curve[i-1], r.Curve[i]
			return interpolateCurve(source, prev.Source, next.Source, prev.Destination, next.Destination)
		}
	}
	return r.Curve[len(r.Curve)-1].Destination
}

// SourceAmountFor inverts the curve: the source amount needed at the hop for
// the far end to receive destination units. Routes without a curve pass the
// amount through unchanged.
func (r *Route) SourceAmountFor(destination int64) int64 {
	if len(r.Curve) == 0 {
		return destination
	}
	if destination <= r.Curve[0].Destination {
		return r.Curve[0].Source
	}
	for i := 1; i < len(r.Curve); i++ {
		if destination <= r.Curve[i].Destination {
			prev, next := r.Curve[i-1], r.Curve[i]
			return interpolateCurve(destination, prev.Destination, next.Destination, prev.Source, next.Source)
		}
	}
	return r.Curve[len(r.Curve)-1].Source
}
