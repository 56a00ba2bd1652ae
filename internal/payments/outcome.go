package payments

import (
	"github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/pkg/enums"
)

// Outcome classifies how one gateway observation resolved against the order.
type Outcome string

const (
	// OutcomeNoChange means the conditional update did not fire: the order
	// already carried the target pair, or it is terminally paid.
	OutcomeNoChange Outcome = "no_change"
	// OutcomeStatusChanged means the pair moved without confirming payment.
	OutcomeStatusChanged Outcome = "status_changed"
	// OutcomeNewlyPaid means this observation won the pending-to-paid
	// transition; confirmation side effects run exactly for this outcome.
	OutcomeNewlyPaid Outcome = "newly_paid"
)

func (o Outcome) String() string {
	return string(o)
}

// Decide derives the outcome from the transition the store reported and the
// target pair the mapper produced. Pure so the arbitration rules can be
// tested without a database.
func Decide(transition orders.StatusTransition, targetPayment enums.PaymentStatus) Outcome {
	if !transition.Applied {
		return OutcomeNoChange
	}
	if targetPayment == enums.PaymentStatusPaid && transition.PreviousPaymentStatus != enums.PaymentStatusPaid {
		return OutcomeNewlyPaid
	}
	return OutcomeStatusChanged
}
