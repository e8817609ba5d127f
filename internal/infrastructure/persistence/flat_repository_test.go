package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
)

func seedWing(t *testing.T, repo *GormFlatRepository, tenantID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, k := range []member.FlatKey{
		member.NewFlatKey("A", "1", "101"),
		member.NewFlatKey("A", "1", "102"),
		member.NewFlatKey("A", "2", "201"),
		member.NewFlatKey("B", "1", "101"),
	} {
		flat, err := member.NewFlat(tenantID, k, member.ClassificationOwner, "")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, flat))
	}
}

func TestGormFlatRepository_FindByKey(t *testing.T) {
	repo := NewGormFlatRepository(newSQLiteDB(t))
	ctx := context.Background()
	tenantID := uuid.New()
	seedWing(t, repo, tenantID)

	flat, err := repo.FindByKey(ctx, tenantID, member.NewFlatKey("A", "2", "201"))
	require.NoError(t, err)
	assert.Equal(t, "A-2-201", flat.Key.String())

	_, err = repo.FindByKey(ctx, tenantID, member.NewFlatKey("C", "1", "101"))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = repo.FindByKey(ctx, uuid.New(), member.NewFlatKey("A", "2", "201"))
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormFlatRepository_Save_UpdatesExisting(t *testing.T) {
	repo := NewGormFlatRepository(newSQLiteDB(t))
	ctx := context.Background()
	tenantID := uuid.New()

	flat, err := member.NewFlat(tenantID, member.NewFlatKey("A", "1", "101"), member.ClassificationOwner, "Asha")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, flat))

	flat.Classification = member.ClassificationRenter
	flat.WalletBalance = dec(300)
	require.NoError(t, repo.Save(ctx, flat))

	stored, err := repo.FindByKey(ctx, tenantID, flat.Key)
	require.NoError(t, err)
	assert.Equal(t, member.ClassificationRenter, stored.Classification)
	assert.True(t, stored.WalletBalance.Equal(dec(300)))
	assert.Equal(t, "Asha", stored.MemberName)
}

func TestGormFlatRepository_FindByKeys_SkipsMissing(t *testing.T) {
	repo := NewGormFlatRepository(newSQLiteDB(t))
	ctx := context.Background()
	tenantID := uuid.New()
	seedWing(t, repo, tenantID)

	flats, err := repo.FindByKeys(ctx, tenantID, []member.FlatKey{
		member.NewFlatKey("A", "1", "102"),
		member.NewFlatKey("B", "1", "101"),
		member.NewFlatKey("B", "9", "901"),
	})
	require.NoError(t, err)
	require.Len(t, flats, 2)

	keys := []string{flats[0].Key.String(), flats[1].Key.String()}
	assert.ElementsMatch(t, []string{"A-1-102", "B-1-101"}, keys)

	none, err := repo.FindByKeys(ctx, tenantID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormFlatRepository_ListMatching(t *testing.T) {
	repo := NewGormFlatRepository(newSQLiteDB(t))
	ctx := context.Background()
	tenantID := uuid.New()
	seedWing(t, repo, tenantID)

	tests := []struct {
		name     string
		selector member.FlatKey
		want     []string
	}{
		{"whole wing", member.NewFlatKey("A", "", ""), []string{"A-1-101", "A-1-102", "A-2-201"}},
		{"one floor", member.NewFlatKey("A", "1", ""), []string{"A-1-101", "A-1-102"}},
		{"exact flat", member.NewFlatKey("B", "1", "101"), []string{"B-1-101"}},
		{"unknown wing", member.NewFlatKey("Z", "", ""), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flats, err := repo.ListMatching(ctx, tenantID, tt.selector)
			require.NoError(t, err)
			got := make([]string, len(flats))
			for i, f := range flats {
				got[i] = f.Key.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormFlatRepository_List_Paginates(t *testing.T) {
	repo := NewGormFlatRepository(newSQLiteDB(t))
	ctx := context.Background()
	tenantID := uuid.New()
	seedWing(t, repo, tenantID)

	page, total, err := repo.List(ctx, tenantID, shared.Filter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 1)
	assert.Equal(t, "B-1-101", page[0].Key.String())
}
