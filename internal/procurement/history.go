package procurement

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// OrderHistory is the decision and audit trail of one order.
type OrderHistory struct {
	OrderID   int64                `json:"order_id"`
	Decisions []shared.ApprovalLog `json:"decisions"`
	Events    []shared.AuditLog    `json:"events"`
}

// History returns negotiation decisions and audit events for an order.
func (s *Service) History(ctx context.Context, id int64, limit int) (OrderHistory, error) {
	if _, err := s.repo.GetOrder(ctx, id); err != nil {
		return OrderHistory{}, err
	}
	history := OrderHistory{OrderID: id, Decisions: []shared.ApprovalLog{}, Events: []shared.AuditLog{}}
	if s.approvals != nil {
		decisions, err := s.approvals.List(ctx, approvalModule, shared.RefID(approvalModule, id))
		if err != nil {
			return OrderHistory{}, err
		}
		if decisions != nil {
			history.Decisions = decisions
		}
	}
	if s.audit != nil {
		events, err := s.audit.Trail(ctx, auditEntity, strconv.FormatInt(id, 10), limit)
		if err != nil {
			return OrderHistory{}, err
		}
		if events != nil {
			history.Events = events
		}
	}
	return history, nil
}
