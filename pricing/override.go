/*
override.go - Approval-gated manual rate overrides

PURPOSE:
  When a user manually edits the unit price on a line that carries an
  ACTIVE contract rate, the change must not silently bypass the contract.
  The OverrideGate is a small state machine that holds the edit in
  PendingApproval until a supervisor supplies a reason and a credential,
  producing an immutable OverrideRecord on approval.

STATE MACHINE:

     Propose (differs > epsilon          Approve (reason + valid
      from active contract rate)          credential)
  Idle ----------------------> PendingApproval ----------> Approved
                                    |                         |
                                    | Cancel                  | Propose (new edit)
                                    v                         v
                                Cancelled              PendingApproval

  - Lines WITHOUT an active contract rate never enter PendingApproval:
    direct edits are always permitted (Propose returns Idle).
  - Edits within RateEpsilon of the resolved rate are not overrides.
  - Only the Approved transition produces an OverrideRecord.
  - A later Approved transition fully replaces any prior record.
  - Cancel reverts to the resolved rate; nothing is recorded.

FAIL CLOSED:
  Credential verification is delegated to an external authorization
  collaborator behind the CredentialVerifier interface. If the verifier
  errors (unreachable), the gate REJECTS the override - an unreachable
  authorizer must never admit a rate change.

ATOMICITY:
  Verify-then-apply runs under the gate's mutex: concurrent override
  attempts on the same line are serialized and no interleaving between
  credential check and rate mutation is observable.

SEE ALSO:
  - order.go: OrderLine.ApplyOverride / ChangeMaterial (freeze semantics)
  - api/handlers.go: HTTP surface and audit persistence
*/
package pricing

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERRIDE RECORD - Immutable audit artifact
// =============================================================================

// OverrideRecord is created only by an Approved transition. Immutable once
// created; attached to the order line and to order-level audit metadata.
type OverrideRecord struct {
	ID           string
	MaterialID   MaterialID
	OriginalRate decimal.Decimal
	OverrideRate decimal.Decimal
	Reason       string
	ApprovedBy   string
	ApprovedAt   time.Time
}

// =============================================================================
// CREDENTIAL VERIFIER - External authorization collaborator
// =============================================================================

// CredentialVerifier checks an opaque override credential. The engine has
// no knowledge of the secret's structure. A returned error means the
// collaborator is unreachable - callers must fail closed.
type CredentialVerifier interface {
	Verify(ctx context.Context, secret string) (bool, error)
}

// StaticVerifier compares against a configured secret in constant time.
// Development/test implementation; production substitutes a real
// authorization service behind the same interface.
type StaticVerifier struct {
	Secret string
}

func (v StaticVerifier) Verify(_ context.Context, secret string) (bool, error) {
	if v.Secret == "" {
		return false, &UnavailableError{Op: "authorizer", Err: ErrVerifierNotConfigured}
	}
	return subtle.ConstantTimeCompare([]byte(v.Secret), []byte(secret)) == 1, nil
}

// ErrVerifierNotConfigured signals a missing override secret. Lives here
// rather than errors.go because only StaticVerifier returns it.
var ErrVerifierNotConfigured = errors.New("override secret not configured")

// =============================================================================
// OVERRIDE GATE - State machine guarding one line's rate
// =============================================================================

type OverrideState string

const (
	OverrideIdle            OverrideState = "idle"
	OverridePendingApproval OverrideState = "pending_approval"
	OverrideApproved        OverrideState = "approved"
	OverrideCancelled       OverrideState = "cancelled"
)

// OverrideGate guards manual rate edits on a single order line.
type OverrideGate struct {
	mu       sync.Mutex
	verifier CredentialVerifier

	// Clock supplies ApprovedAt timestamps. Nil means time.Now.
	Clock func() time.Time

	state      OverrideState
	resolution RateResolution  // the contracted resolution being guarded
	requested  decimal.Decimal // rate awaiting approval
	record     *OverrideRecord // last approved record, nil until Approved
}

// NewOverrideGate creates a gate in the Idle state.
func NewOverrideGate(verifier CredentialVerifier) *OverrideGate {
	return &OverrideGate{verifier: verifier, state: OverrideIdle}
}

func (g *OverrideGate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

// State returns the current gate state.
func (g *OverrideGate) State() OverrideState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Record returns the last approved override, or nil.
func (g *OverrideGate) Record() *OverrideRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record
}

// ResolvedRate returns the rate the line reverts to on Cancel.
func (g *OverrideGate) ResolvedRate() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolution.EffectiveRate
}

// Propose evaluates a manual rate edit against the current resolution.
// Returns the resulting state:
//
//	OverrideIdle            - edit permitted directly (no active contract
//	                          rate, or within epsilon of it); no approval.
//	OverridePendingApproval - the edit conflicts with an active contract
//	                          rate and awaits Approve or Cancel.
func (g *OverrideGate) Propose(resolution RateResolution, requestedRate decimal.Decimal) OverrideState {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resolution = resolution

	if !resolution.IsContractRate {
		g.state = OverrideIdle
		return g.state
	}
	if WithinEpsilon(requestedRate, resolution.EffectiveRate) {
		g.state = OverrideIdle
		return g.state
	}

	g.requested = requestedRate
	g.state = OverridePendingApproval
	return g.state
}

// Approve attempts the PendingApproval -> Approved transition. The
// credential check and the record creation are atomic under the gate's
// mutex. On ErrInvalidCredential the gate STAYS pending so the user can
// retry without side effects; on verifier failure the gate fails closed.
func (g *OverrideGate) Approve(ctx context.Context, approvedBy, reason, credential string) (*OverrideRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != OverridePendingApproval {
		return nil, ErrOverrideNotPending
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}

	ok, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		// Fail closed: an unreachable authorizer rejects the override.
		return nil, &UnavailableError{Op: "authorizer", Err: err}
	}
	if !ok {
		return nil, ErrInvalidCredential
	}

	rec := &OverrideRecord{
		ID:           uuid.NewString(),
		MaterialID:   g.resolution.MaterialID,
		OriginalRate: g.resolution.EffectiveRate,
		OverrideRate: g.requested,
		Reason:       reason,
		ApprovedBy:   approvedBy,
		ApprovedAt:   g.now(),
	}

	// Last approval fully replaces any prior record - no merging.
	g.record = rec
	g.state = OverrideApproved
	return rec, nil
}

// Cancel aborts a pending override; the line reverts to the resolved
// rate. No record is produced.
func (g *OverrideGate) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != OverridePendingApproval {
		return ErrOverrideNotPending
	}
	g.state = OverrideCancelled
	g.requested = decimal.Zero
	return nil
}
