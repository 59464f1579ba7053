package orders

import (
	"slices"

	"go-pharmacy-pos/internal/models"
)

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderCompleted, models.OrderCancelled},
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending: {models.PaymentPaid, models.PaymentFailed},
	models.PaymentPaid:    {models.PaymentRefunded},
}

func knownOrderStatus(s models.OrderStatus) bool {
	switch s {
	case models.OrderPending, models.OrderProcessing, models.OrderCompleted, models.OrderCancelled:
		return true
	}
	return false
}

func knownPaymentStatus(s models.PaymentStatus) bool {
	switch s {
	case models.PaymentPending, models.PaymentPaid, models.PaymentFailed, models.PaymentRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one fulfilment
// status to another. Terminal states have no exits.
func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// CanTransitionPayment is the payment-status counterpart of CanTransition.
func CanTransitionPayment(from, to models.PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}
