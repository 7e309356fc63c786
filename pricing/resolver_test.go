package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func copper(market string) pricing.Material {
	return pricing.Material{
		ID:            "mat-copper",
		Name:          "Copper Cathode",
		Unit:          "ton",
		StandardPrice: dec(market),
	}
}

// activeContract covers all of 2026 for cust-acme.
func activeContract(rates map[pricing.MaterialID]pricing.RateSpec) *pricing.Contract {
	return &pricing.Contract{
		ID:         "ctr-2026-acme",
		CustomerID: "cust-acme",
		StartDate:  time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		Status:     pricing.ContractActive,
		Rates:      rates,
	}
}

// midYear2026 is well inside the contract window.
func midYear2026() time.Time {
	return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func resolverAt(now time.Time) *pricing.Resolver {
	return &pricing.Resolver{Clock: func() time.Time { return now }}
}

func assertDecimal(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "expected %s, got %s %v", expected, actual, msgAndArgs)
}

// =============================================================================
// VARIANT MATH TESTS
// =============================================================================

func TestResolveRate_FixedRate_UsedVerbatim(t *testing.T) {
	// GIVEN: Active contract with a fixed rate of 9250 (market 9400)
	// WHEN: Resolving the rate
	// THEN: Effective rate is exactly the contract rate

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateFixed, ContractRate: dec("9250.00")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), contract)

	assert.True(t, res.IsContractRate)
	assert.Equal(t, pricing.RateSourceContract, res.Source)
	assert.Equal(t, pricing.FallbackNone, res.Fallback)
	assertDecimal(t, dec("9250.00"), res.EffectiveRate)
	assertDecimal(t, dec("9400"), res.MarketRate)
}

func TestResolveRate_DiscountPercent_AppliedToMarket(t *testing.T) {
	// GIVEN: 20% discount, market rate 10.000
	// WHEN: Resolving the rate
	// THEN: Effective rate is exactly 8.000 (decimal arithmetic, no drift)

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateDiscountPercent, Percent: dec("20")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("10.000"), contract)

	assert.True(t, res.IsContractRate)
	assertDecimal(t, dec("8.000"), res.EffectiveRate)
}

func TestResolveRate_DiscountOver100Percent_ClampsToZero(t *testing.T) {
	// GIVEN: A 150% discount (bad data, but representable)
	// WHEN: Resolving the rate
	// THEN: Effective rate clamps at zero, never negative

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateDiscountPercent, Percent: dec("150")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("100"), contract)

	assertDecimal(t, decimal.Zero, res.EffectiveRate)
}

func TestResolveRate_MinimumGuarantee_CapsAboveMarket(t *testing.T) {
	// GIVEN: Cap of 9, market at 10
	// WHEN: Resolving the rate
	// THEN: Customer pays the cap

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateMinimumGuarantee, CapRate: dec("9")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("10"), contract)

	assert.True(t, res.IsContractRate)
	assertDecimal(t, dec("9"), res.EffectiveRate)
}

func TestResolveRate_MinimumGuarantee_FollowsMarketBelowCap(t *testing.T) {
	// GIVEN: Cap of 9, market dropped to 8
	// WHEN: Resolving the rate
	// THEN: Customer pays the lower market rate

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateMinimumGuarantee, CapRate: dec("9")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("8"), contract)

	assertDecimal(t, dec("8"), res.EffectiveRate)
}

// =============================================================================
// FALLBACK TESTS
// =============================================================================

func TestResolveRate_NoContract_MarketRate(t *testing.T) {
	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), nil)

	assert.False(t, res.IsContractRate)
	assert.Equal(t, pricing.RateSourceMarket, res.Source)
	assert.Equal(t, pricing.FallbackNoContract, res.Fallback)
	assertDecimal(t, dec("9400"), res.EffectiveRate)
	assert.Nil(t, res.RateSpec)
}

func TestResolveRate_NoRateEntry_MarketRate(t *testing.T) {
	// GIVEN: Contract exists but has no entry for this material
	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-zinc": {Kind: pricing.RateFixed, ContractRate: dec("2500")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), contract)

	assert.False(t, res.IsContractRate)
	assert.Equal(t, pricing.FallbackNoRateEntry, res.Fallback)
	assertDecimal(t, dec("9400"), res.EffectiveRate)
}

func TestResolveRate_ExpiredContract_FallsBackToMarket(t *testing.T) {
	// GIVEN: Contract rate of 9250, but the contract window ended last year
	// WHEN: Resolving after expiry
	// THEN: Market rate with an explicit fallback signal, never an error

	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateFixed, ContractRate: dec("9250")},
	})

	afterExpiry := time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
	res := resolverAt(afterExpiry).ResolveRate(copper("9400"), contract)

	assert.False(t, res.IsContractRate)
	assert.Equal(t, pricing.RateSourceMarket, res.Source)
	assert.Equal(t, pricing.FallbackInactive, res.Fallback)
	assertDecimal(t, dec("9400"), res.EffectiveRate)
}

func TestResolveRate_SuspendedContract_FallsBackToMarket(t *testing.T) {
	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateFixed, ContractRate: dec("9250")},
	})
	contract.Status = pricing.ContractSuspended

	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), contract)

	assert.Equal(t, pricing.FallbackInactive, res.Fallback)
	assertDecimal(t, dec("9400"), res.EffectiveRate)
}

func TestResolveRate_ContractStartsTomorrow_NotYetActive(t *testing.T) {
	// Boundary: the window is inclusive on both ends, so the day before
	// the start date is still market.
	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateFixed, ContractRate: dec("9250")},
	})

	dayBefore := time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC)
	res := resolverAt(dayBefore).ResolveRate(copper("9400"), contract)
	assert.Equal(t, pricing.FallbackInactive, res.Fallback)

	onStart := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	res = resolverAt(onStart).ResolveRate(copper("9400"), contract)
	assert.True(t, res.IsContractRate)
}

// =============================================================================
// PER-RATE VALIDITY TESTS
// =============================================================================

func TestResolveRate_RateLevelValidity_OverridesContractWindow(t *testing.T) {
	// GIVEN: Contract active all year, but this rate's own window is Q1 only
	// WHEN: Resolving in June
	// THEN: Rate is inactive even though the contract is not

	q1 := &pricing.Validity{
		StartDate: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		Status:    pricing.ContractActive,
	}
	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateFixed, ContractRate: dec("9250"), Validity: q1},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), contract)
	assert.Equal(t, pricing.FallbackInactive, res.Fallback)

	inQ1 := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	res = resolverAt(inQ1).ResolveRate(copper("9400"), contract)
	require.True(t, res.IsContractRate)
	assertDecimal(t, dec("9250"), res.EffectiveRate)
}

func TestResolveRate_UnknownRateKind_MarketRate(t *testing.T) {
	// Corrupt records never invent a price.
	contract := activeContract(map[pricing.MaterialID]pricing.RateSpec{
		"mat-copper": {Kind: pricing.RateKind("loyalty_tier"), ContractRate: dec("1")},
	})

	res := resolverAt(midYear2026()).ResolveRate(copper("9400"), contract)
	assertDecimal(t, dec("9400"), res.EffectiveRate)
}
