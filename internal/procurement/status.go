package procurement

// Status is the persisted purchase order lifecycle status.
type Status string

const (
	StatusPending                Status = "PENDING"
	StatusSentToSupplier         Status = "SENT_TO_SUPPLIER"
	StatusConfirmedBySupplier    Status = "CONFIRMED_BY_SUPPLIER"
	StatusRejectedBySupplier     Status = "REJECTED_BY_SUPPLIER"
	StatusChangesProposed        Status = "CHANGES_PROPOSED_BY_SUPPLIER"
	StatusPendingInternalReview  Status = "PENDING_INTERNAL_REVIEW"
	StatusPartiallyDelivered     Status = "PARTIALLY_DELIVERED"
	StatusAwaitingFutureDelivery Status = "AWAITING_FUTURE_DELIVERY"
	StatusFullyReceived          Status = "FULLY_RECEIVED"
	StatusCompleted              Status = "COMPLETED"
	StatusCanceled               Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusPending:                {StatusSentToSupplier, StatusCanceled},
	StatusSentToSupplier:         {StatusConfirmedBySupplier, StatusRejectedBySupplier, StatusChangesProposed, StatusCanceled},
	StatusChangesProposed:        {StatusPendingInternalReview, StatusRejectedBySupplier, StatusCanceled},
	StatusPendingInternalReview:  {StatusConfirmedBySupplier, StatusChangesProposed, StatusRejectedBySupplier, StatusCanceled},
	StatusConfirmedBySupplier:    {StatusPartiallyDelivered, StatusAwaitingFutureDelivery, StatusFullyReceived, StatusCanceled},
	StatusPartiallyDelivered:     {StatusPartiallyDelivered, StatusAwaitingFutureDelivery, StatusFullyReceived, StatusCanceled},
	StatusAwaitingFutureDelivery: {StatusAwaitingFutureDelivery, StatusPartiallyDelivered, StatusFullyReceived},
	StatusFullyReceived:          {StatusCompleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSentToSupplier, StatusConfirmedBySupplier, StatusRejectedBySupplier,
		StatusChangesProposed, StatusPendingInternalReview, StatusPartiallyDelivered,
		StatusAwaitingFutureDelivery, StatusFullyReceived, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the table allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses that accept no further transition.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Receivable reports whether receipts may be posted in this status.
func (s Status) Receivable() bool {
	switch s {
	case StatusConfirmedBySupplier, StatusPartiallyDelivered, StatusAwaitingFutureDelivery:
		return true
	}
	return false
}

// confirmed reports statuses reached after supplier confirmation, where
// requisition quantities already count as purchased.
func (s Status) confirmed() bool {
	switch s {
	case StatusConfirmedBySupplier, StatusPartiallyDelivered, StatusAwaitingFutureDelivery,
		StatusFullyReceived, StatusCompleted:
		return true
	}
	return false
}
