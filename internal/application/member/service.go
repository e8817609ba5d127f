// Package member maintains the flat directory that bulk billing reads from.
package member

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// Service registers and lists flats
type Service struct {
	repo member.Repository
}

// NewService creates a new member Service
func NewService(repo member.Repository) *Service {
	return &Service{repo: repo}
}

// RegisterFlat creates the flat or updates the member details of an existing
// one. The wallet of an existing flat is never touched here.
func (s *Service) RegisterFlat(ctx context.Context, tenantID uuid.UUID, req RegisterFlatRequest) (*FlatResponse, bool, error) {
	key := member.NewFlatKey(req.Wing, req.Floor, req.Flat)
	class := member.Classification(strings.ToLower(strings.TrimSpace(req.Classification)))
	if !class.IsValid() {
		return nil, false, shared.NewValidationError("unknown classification %q", req.Classification)
	}

	flat, err := s.repo.FindByKey(ctx, tenantID, key)
	created := false
	switch {
	case errors.Is(err, shared.ErrNotFound):
		flat, err = member.NewFlat(tenantID, key, class, req.MemberName)
		if err != nil {
			return nil, false, err
		}
		if req.OpeningWallet != nil {
			if req.OpeningWallet.IsNegative() {
				return nil, false, shared.NewValidationError("opening wallet cannot be negative")
			}
			flat.WalletBalance = *req.OpeningWallet
		}
		created = true
	case err != nil:
		return nil, false, err
	default:
		flat.Classification = class
		flat.MemberName = strings.TrimSpace(req.MemberName)
		flat.Touch()
	}
	flat.Email = strings.TrimSpace(req.Email)
	flat.Phone = strings.TrimSpace(req.Phone)

	if err := s.repo.Save(ctx, flat); err != nil {
		return nil, false, err
	}
	logger.L(ctx).Info("flat registered",
		zap.String("flat", key.String()),
		zap.String("classification", string(class)),
		zap.Bool("created", created),
	)
	resp := ToFlatResponse(flat)
	return &resp, created, nil
}

// GetFlat returns one flat
func (s *Service) GetFlat(ctx context.Context, tenantID uuid.UUID, key member.FlatKey) (*FlatResponse, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if !key.IsExact() {
		return nil, shared.NewValidationError("flat key %q must name wing, floor and flat", key.String())
	}
	flat, err := s.repo.FindByKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	resp := ToFlatResponse(flat)
	return &resp, nil
}

// ListFlats pages through the directory. A non-empty wing narrows the list
// to that wing (and floor, when given).
func (s *Service) ListFlats(ctx context.Context, tenantID uuid.UUID, wing, floor string, filter shared.Filter) (shared.Paginated[FlatResponse], error) {
	var (
		flats []member.Flat
		total int64
		err   error
	)
	if strings.TrimSpace(wing) != "" {
		flats, err = s.repo.ListMatching(ctx, tenantID, member.NewFlatKey(wing, floor, ""))
		total = int64(len(flats))
		flats = pageOf(flats, filter)
	} else {
		flats, total, err = s.repo.List(ctx, tenantID, filter)
	}
	if err != nil {
		return shared.Paginated[FlatResponse]{}, err
	}

	items := make([]FlatResponse, len(flats))
	for i := range flats {
		items[i] = ToFlatResponse(&flats[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func pageOf(flats []member.Flat, filter shared.Filter) []member.Flat {
	if filter.PageSize <= 0 {
		return flats
	}
	start := min(filter.Offset(), len(flats))
	end := min(start+filter.PageSize, len(flats))
	return flats[start:end]
}
