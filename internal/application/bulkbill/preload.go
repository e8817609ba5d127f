package bulkbill

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// recipient is a flat that will receive a bill in this run
type recipient struct {
	Flat       member.Flat
	Amount     decimal.Decimal
	Allocation bill.Allocation
}

type preloadResult struct {
	Recipients []recipient
	Skipped    int
	Errors     []BatchError
}

// preload resolves selectors to flats, drops dead flats and prices the rest.
// A failed read marks the affected recipients and moves on.
func (s *Service) preload(ctx context.Context, tenantID uuid.UUID, selectors []member.FlatKey, items []bill.Item) preloadResult {
	var res preloadResult

	// order keeps first-seen order so bill numbers follow the caller's list
	var order []member.FlatKey
	seen := make(map[member.FlatKey]bool)
	found := make(map[member.FlatKey]member.Flat)
	var exact []member.FlatKey

	for _, sel := range selectors {
		if sel.IsExact() {
			if !seen[sel] {
				seen[sel] = true
				order = append(order, sel)
				exact = append(exact, sel)
			}
			continue
		}
		flats, err := s.directory.ListMatching(ctx, tenantID, sel)
		if err != nil {
			res.Errors = append(res.Errors, BatchError{Stage: StagePreload, Recipient: sel.String(), Message: err.Error()})
			continue
		}
		for _, f := range flats {
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			order = append(order, f.Key)
			found[f.Key] = f
		}
	}

	failed := make(map[member.FlatKey]bool)
	for start := 0; start < len(exact); start += s.cfg.PreloadChunkSize {
		end := min(start+s.cfg.PreloadChunkSize, len(exact))
		chunk := exact[start:end]
		flats, err := s.directory.FindByKeys(ctx, tenantID, chunk)
		if err != nil {
			logger.L(ctx).Warn("flat chunk read failed", zap.Int("chunk_size", len(chunk)), zap.Error(err))
			for _, k := range chunk {
				failed[k] = true
				res.Errors = append(res.Errors, BatchError{Stage: StagePreload, Recipient: k.String(), Message: err.Error()})
			}
			continue
		}
		for _, f := range flats {
			found[f.Key] = f
		}
	}

	for _, key := range order {
		flat, ok := found[key]
		if !ok {
			if !failed[key] {
				res.Errors = append(res.Errors, BatchError{Stage: StagePreload, Recipient: key.String(), Message: "flat not found"})
			}
			continue
		}
		if !flat.Classification.Billable() {
			res.Skipped++
			continue
		}
		amount, alloc := bill.Allocate(items, flat.Classification)
		res.Recipients = append(res.Recipients, recipient{Flat: flat, Amount: amount, Allocation: alloc})
	}
	return res
}
