package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	// PaymentGatewayID is the local order id echoed by the client, if sent.
	PaymentGatewayID string
}

var (
	errOrderMismatch = errors.New("payment does not belong to order")
	errUncounted     = errors.New("signature rejected without order id")
)

// VerifyPayment applies a gateway callback. Only a valid signature marks the
// order paid; repeating a successful callback changes nothing. Invalid
// signatures are counted only when the callback names the local order id,
// and the payment fails once the limit is reached.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (domain.Order, error) {
	mismatch := false
	o, err := s.repo.UpdateByPaymentRef(ctx, in.GatewayOrderID, func(o *domain.Order) (*outbox.Message, error) {
		if in.PaymentGatewayID != "" && in.PaymentGatewayID != o.ID {
			return nil, errOrderMismatch
		}
		if !s.signatures.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
			if in.PaymentGatewayID == "" {
				return nil, errUncounted
			}
			mismatch = true
			o.RecordSignatureFailure(s.maxSignatureFailures)
			return nil, nil
		}
		if err := o.MarkPaid(in.GatewayPaymentID); err != nil {
			return nil, err
		}
		msg, err := outbox.NewMessage(ctx, domain.AggregateType, o.ID, domain.EventOrderPaid, domain.OrderPaid{
			OrderID:        o.ID,
			PaymentOrderID: in.GatewayOrderID,
			TransactionID:  in.GatewayPaymentID,
			TotalPrice:     o.TotalPrice,
			PaidAt:         s.now(),
		})
		return &msg, err
	})

	switch {
	case errors.Is(err, domain.ErrAlreadyPaid):
		s.log.InfoContext(ctx, "payment already reconciled", "order_id", o.ID)
		return o, nil
	case errors.Is(err, errUncounted):
		s.log.WarnContext(ctx, "payment signature rejected", "payment_order_id", in.GatewayOrderID)
		return domain.Order{}, apperr.SignatureInvalid("Payment verification failed")
	case errors.Is(err, errOrderMismatch):
		return domain.Order{}, apperr.Wrap(apperr.KindValidation, "payment does not belong to this order", err)
	case err != nil:
		return domain.Order{}, translate(err)
	}

	if mismatch {
		s.log.WarnContext(ctx, "payment signature rejected", "order_id", o.ID,
			"failures", o.SignatureFailures, "payment_status", o.PaymentStatus)
		return domain.Order{}, apperr.SignatureInvalid("Payment verification failed")
	}
	if o.NeedsRefund() {
		s.log.WarnContext(ctx, "payment captured for cancelled order, refund required",
			"order_id", o.ID, "transaction_id", o.TransactionID, "total", o.TotalPrice)
	} else {
		s.log.InfoContext(ctx, "order paid", "order_id", o.ID, "transaction_id", o.TransactionID)
	}
	return o, nil
}
