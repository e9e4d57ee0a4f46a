package service

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRequest carries what the gateway needs to settle a charge.
// Reference is optional: when empty the gateway assigns one.
type PaymentRequest struct {
	Method      string
	Reference   string
	AmountCents int64
}

// PaymentOutcome is the gateway's verdict on a charge attempt.  Exactly
// one of the two concrete types is returned: PaymentSuccess or
// PaymentFailure.
type PaymentOutcome interface {
	outcome()
}

// PaymentSuccess carries the settled payment's reference.
type PaymentSuccess struct {
	Reference string
}

// PaymentFailure carries the gateway's decline reason.
type PaymentFailure struct {
	Reason string
}

func (PaymentSuccess) outcome() {}
func (PaymentFailure) outcome() {}

// PaymentProcessor charges a payment request.  A non-nil error means
// the attempt itself could not be made; a decline is a PaymentFailure
// outcome, not an error.
type PaymentProcessor interface {
	Charge(ctx context.Context, req PaymentRequest) (PaymentOutcome, error)
}

// SimulatedGateway is a deterministic in-process processor.  A request
// whose method is "card_declined" is declined; everything else settles
// with the supplied reference, or a generated one when absent.
type SimulatedGateway struct{}

func NewSimulatedGateway() *SimulatedGateway { return &SimulatedGateway{} }

func (g *SimulatedGateway) Charge(_ context.Context, req PaymentRequest) (PaymentOutcome, error) {
	if req.Method == "card_declined" {
		return PaymentFailure{Reason: "card declined"}, nil
	}
	ref := req.Reference
	if ref == "" {
		ref = "PAY-" + uuid.NewString()
	}
	return PaymentSuccess{Reference: ref}, nil
}
