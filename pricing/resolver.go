/*
resolver.go - Effective unit price resolution

PURPOSE:
  Resolves the effective unit price for a material given an optional
  customer contract. This is the first thing that runs when a user edits
  an order line: contracted customers see their negotiated rate, everyone
  else sees the market (standard) price.

RESOLUTION RULES:
  1. No contract, or no RateSpec for the material -> market rate.
  2. RateSpec inactive (outside its validity window, or governing status
     not active) -> market rate, with an explicit fallback signal so the
     UI can show "contract rate expired, using market rate".
  3. RateSpec active -> compute by variant:
       fixed             -> contract rate verbatim
       discount_percent  -> max(0, market * (1 - percent/100))
       minimum_guarantee -> min(market, cap)

WHY A SIGNAL INSTEAD OF AN ERROR:
  An expired contract is a routine, recoverable condition. Degrading to
  the market rate must never fail the line, but the caller must be able
  to tell the difference between "market because no contract" and
  "market because the contracted rate lapsed".

PURITY:
  ResolveRate is a pure function of (material, contract, now). The clock
  is injectable for deterministic tests; the zero Resolver uses time.Now.

SEE ALSO:
  - contract.go: ActiveAt / ValidityFor
  - override.go: Gates manual edits against the resolution produced here
*/
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE RESOLUTION - Output of ResolveRate
// =============================================================================

// RateSource identifies where the effective rate came from.
type RateSource string

const (
	RateSourceContract RateSource = "contract"
	RateSourceMarket   RateSource = "market"
)

// FallbackReason explains why a contracted customer got the market rate.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackNoContract  FallbackReason = "no_contract"
	FallbackNoRateEntry FallbackReason = "no_contract_rate"
	FallbackInactive    FallbackReason = "contract_rate_inactive" // expired, using market rate
)

// RateResolution is the full output of rate resolution for one material.
type RateResolution struct {
	MaterialID     MaterialID
	EffectiveRate  decimal.Decimal
	MarketRate     decimal.Decimal
	IsContractRate bool
	Source         RateSource
	Fallback       FallbackReason

	// RateSpec is the applied contract rule when IsContractRate is true.
	RateSpec *RateSpec
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver resolves effective unit prices. The zero value is usable and
// evaluates contract validity against time.Now.
type Resolver struct {
	// Clock supplies "now" for validity checks. Nil means time.Now.
	Clock func() time.Time
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// ResolveRate resolves the effective unit price for material under the
// given contract (nil = no contract). Pure: no I/O, no mutation.
func (r *Resolver) ResolveRate(material Material, contract *Contract) RateResolution {
	res := RateResolution{
		MaterialID:    material.ID,
		MarketRate:    material.StandardPrice,
		EffectiveRate: material.StandardPrice,
		Source:        RateSourceMarket,
	}

	if contract == nil {
		res.Fallback = FallbackNoContract
		return res
	}

	spec, ok := contract.RateFor(material.ID)
	if !ok {
		res.Fallback = FallbackNoRateEntry
		return res
	}

	if !contract.ActiveAt(spec, r.now()) {
		// Invariant: effective price is never taken from an inactive spec.
		res.Fallback = FallbackInactive
		return res
	}

	res.IsContractRate = true
	res.Source = RateSourceContract
	res.RateSpec = &spec
	res.EffectiveRate = applyRateSpec(spec, material.StandardPrice)
	return res
}

// applyRateSpec computes the variant math against the market rate.
func applyRateSpec(spec RateSpec, market decimal.Decimal) decimal.Decimal {
	switch spec.Kind {
	case RateFixed:
		return spec.ContractRate

	case RateDiscountPercent:
		rate := market.Mul(decimal.NewFromInt(1).Sub(spec.Percent.Div(hundred)))
		if rate.IsNegative() {
			return decimal.Zero
		}
		return rate

	case RateMinimumGuarantee:
		if market.LessThan(spec.CapRate) {
			return market
		}
		return spec.CapRate

	default:
		// Unknown kinds cannot exist past factory normalization; treat as
		// market so a corrupt record never silently invents a price.
		return market
	}
}
