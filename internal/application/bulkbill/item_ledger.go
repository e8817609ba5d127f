package bulkbill

import (
	"context"

	"github.com/google/uuid"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/member"
)

// GetBillItemsLedger lists the ledger posting each item of a master bill
// makes for flats of class. Payment acceptance uses it to split a later
// payment of an unpaid recipient bill.
func (s *Service) GetBillItemsLedger(ctx context.Context, tenantID, masterBillID uuid.UUID, class member.Classification) ([]bill.ItemPosting, error) {
	m, err := s.masters.FindByID(ctx, tenantID, masterBillID)
	if err != nil {
		return nil, err
	}
	return bill.ItemsLedger(m.Items, class)
}
