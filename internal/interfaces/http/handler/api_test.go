package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bulkbillapp "github.com/societyledger/backend/internal/application/bulkbill"
	ledgerapp "github.com/societyledger/backend/internal/application/ledger"
	memberapp "github.com/societyledger/backend/internal/application/member"
	notificationapp "github.com/societyledger/backend/internal/application/notification"
	sequenceapp "github.com/societyledger/backend/internal/application/sequence"
	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/infrastructure/cache"
	"github.com/societyledger/backend/internal/infrastructure/persistence"
	"github.com/societyledger/backend/internal/interfaces/http/dto"
	"github.com/societyledger/backend/internal/interfaces/http/handler"
	"github.com/societyledger/backend/internal/interfaces/http/middleware"
	"github.com/societyledger/backend/internal/interfaces/http/router"
	"github.com/societyledger/backend/tests/testutil"
)

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	tenant uuid.UUID
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewSQLiteDB(t, persistence.AutoMigrate)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	retry := persistence.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	formatter := sequence.DefaultFormatter()
	sequences := persistence.NewGormSequenceRepository(db, retry)
	flats := persistence.NewGormFlatRepository(db)
	jobs := persistence.NewGormPendingJobRepository(db, retry)
	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })

	ledgerSvc := ledgerapp.NewService(persistence.NewGormLedgerRepository(db, retry), nil)
	cfg := bulkbillapp.DefaultConfig()
	cfg.Concurrency = 2
	cfg.SettlementBackoff = 0
	bulkSvc := bulkbillapp.NewService(bulkbillapp.Dependencies{
		Directory:      flats,
		Numbers:        sequenceapp.NewService(sequences, formatter, nil),
		MasterBills:    persistence.NewGormMasterBillRepository(db),
		RecipientBills: persistence.NewGormRecipientBillRepository(db),
		Settler:        persistence.NewGormWalletSettlementRepository(db, sequences, formatter),
		Ledger:         ledgerSvc,
		Notifications:  jobs,
		Idempotency:    idem,
	}, cfg)

	engine, err := router.NewEngine(router.EngineConfig{ServiceName: "test", MaxBodySize: 1 << 20}, zap.NewNop(), router.Handlers{
		BulkBills:     handler.NewBulkBillHandler(bulkSvc),
		Ledgers:       handler.NewLedgerHandler(ledgerSvc),
		Flats:         handler.NewFlatHandler(memberapp.NewService(flats)),
		Notifications: handler.NewNotificationHandler(notificationapp.NewService(jobs)),
		System:        handler.NewSystemHandler("society-ledger", "test", map[string]handler.Pinger{"database": handler.PingFunc(sqlDB.PingContext)}),
	})
	require.NoError(t, err)

	return &apiClient{t: t, engine: engine, tenant: uuid.New()}
}

func (a *apiClient) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	if a.tenant != uuid.Nil {
		headers = append([]string{middleware.TenantHeaderKey, a.tenant.String()}, headers...)
	}
	return testutil.DoJSON(a.t, a.engine, method, path, body, headers...)
}

func decodeAs[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (a *apiClient) registerFlat(wing, floor, flat, class, wallet string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/flats", map[string]any{
		"wing": wing, "floor": floor, "flat": flat,
		"classification": class, "member_name": "Member " + flat,
		"opening_wallet": wallet,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
}

func juneBill() map[string]any {
	return map[string]any{
		"name":         "June maintenance",
		"invoice_date": "2026-06-01T09:30:00Z",
		"due_date":     "2026-06-15T00:00:00Z",
		"items": []map[string]any{{
			"name":           "Maintenance",
			"ledger_group":   "Income",
			"ledger_account": "Maintenance",
			"owner_amount":   "100",
			"renter_amount":  "200",
			"closed_amount":  "50",
		}},
		"recipients": []map[string]any{{"wing": "A"}},
	}
}

func ledgerQuery(path, group, account string, extra ...string) string {
	q := url.Values{"group": {group}, "account": {account}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return path + "?" + q.Encode()
}

func TestAPI_BulkBillLifecycle(t *testing.T) {
	api := newAPI(t)
	api.registerFlat("A", "1", "101", "owner", "150")
	api.registerFlat("A", "1", "102", "renter", "0")
	api.registerFlat("A", "1", "103", "closed", "50")
	api.registerFlat("A", "1", "104", "dead", "0")

	w := api.do(http.MethodPost, "/api/v1/bulk-bills", juneBill(), handler.IdempotencyKeyHeader, "june-2026")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeAs[bulkbillapp.Result](t, w).Data
	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 2, result.PaidCount)
	assert.Equal(t, 1, result.UnpaidCount)
	assert.Equal(t, "350.00", result.TotalBillAmount.StringFixed(2))
	assert.Equal(t, "150.00", result.TotalPaidAmount.StringFixed(2))
	billPath := "/api/v1/bulk-bills/" + result.MasterBillID.String()

	t.Run("replayed key is rejected", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/bulk-bills", juneBill(), handler.IdempotencyKeyHeader, "june-2026")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeDuplicateRequest, decodeAs[any](t, w).Error.Code)
	})

	t.Run("master bill", func(t *testing.T) {
		w := api.do(http.MethodGet, billPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		master := decodeAs[bulkbillapp.MasterBillResponse](t, w).Data
		assert.Equal(t, "150.00", master.TotalPaidAmount.StringFixed(2))
		assert.Len(t, master.BillNumbers, 3)
	})

	t.Run("recipient bills are paged by bill number", func(t *testing.T) {
		w := api.do(http.MethodGet, billPath+"/recipient-bills?page=1&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeAs[[]bulkbillapp.RecipientBillResponse](t, w)
		require.NotNil(t, env.Meta)
		assert.Equal(t, int64(3), env.Meta.Total)
		assert.Equal(t, 2, env.Meta.TotalPages)
		require.Len(t, env.Data, 2)
		assert.Equal(t, "BILL/2026-27/000001", env.Data[0].BillNumber)
		assert.Equal(t, bill.StatusPaid, env.Data[0].Status)
		assert.Equal(t, bill.StatusUnpaid, env.Data[1].Status)
	})

	t.Run("items ledger", func(t *testing.T) {
		w := api.do(http.MethodGet, billPath+"/items-ledger?classification=renter", nil)
		require.Equal(t, http.StatusOK, w.Code)
		postings := decodeAs[[]bill.ItemPosting](t, w).Data
		require.Len(t, postings, 1)
		assert.Equal(t, "Maintenance", postings[0].LedgerAccount)
		assert.Equal(t, "200.00", postings[0].Amount.StringFixed(2))

		w = api.do(http.MethodGet, billPath+"/items-ledger?classification=dead", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ledger balances", func(t *testing.T) {
		w := api.do(http.MethodGet, ledgerQuery("/api/v1/ledgers/account", "Account Receivable", "Maintenance"), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		account := decodeAs[ledgerapp.AccountResponse](t, w).Data
		assert.Equal(t, "200.00", account.TotalBalance.StringFixed(2))
		require.NotNil(t, account.LastUpdatedDate)
		assert.Equal(t, "2026-06-01", *account.LastUpdatedDate)

		w = api.do(http.MethodGet, ledgerQuery("/api/v1/ledgers/account", "Current Liabilities", "Members Advanced"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "-150.00", decodeAs[ledgerapp.AccountResponse](t, w).Data.TotalBalance.StringFixed(2))

		w = api.do(http.MethodGet, ledgerQuery("/api/v1/ledgers/daily", "Account Receivable", "Maintenance", "from", "2026-06-01", "to", "2026-06-30"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		deltas := decodeAs[[]ledgerapp.DailyDeltaResponse](t, w).Data
		require.Len(t, deltas, 1)
		assert.Equal(t, "2026-06-01", deltas[0].Date)

		w = api.do(http.MethodGet, ledgerQuery("/api/v1/ledgers/reconcile", "Account Receivable", "Maintenance"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeAs[ledgerapp.ReconcileResponse](t, w).Data.Balanced)
	})

	t.Run("notification queue", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/notifications/pending", nil)
		require.Equal(t, http.StatusOK, w.Code)
		jobs := decodeAs[notificationapp.PendingJobsResponse](t, w).Data
		require.Len(t, jobs.Jobs, 1)
		assert.Equal(t, result.MasterBillID, jobs.Jobs[0].MasterBillID)

		w = api.do(http.MethodDelete, "/api/v1/notifications/pending/"+result.MasterBillID.String(), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = api.do(http.MethodGet, "/api/v1/notifications/pending", nil)
		assert.Empty(t, decodeAs[notificationapp.PendingJobsResponse](t, w).Data.Jobs)
	})

	t.Run("wallets were debited", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/flats/A/1/101", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "50.00", decodeAs[memberapp.FlatResponse](t, w).Data.WalletBalance.StringFixed(2))
	})
}

func TestAPI_Flats(t *testing.T) {
	api := newAPI(t)
	api.registerFlat("A", "1", "101", "owner", "10")
	api.registerFlat("A", "2", "201", "renter", "0")
	api.registerFlat("B", "1", "101", "owner", "0")

	w := api.do(http.MethodPost, "/api/v1/flats", map[string]any{
		"wing": "A", "floor": "1", "flat": "101", "classification": "closed", "opening_wallet": "999",
	})
	require.Equal(t, http.StatusOK, w.Code, "re-registering updates")
	updated := decodeAs[memberapp.FlatResponse](t, w).Data
	assert.Equal(t, "closed", updated.Classification)
	assert.Equal(t, "10.00", updated.WalletBalance.StringFixed(2))

	w = api.do(http.MethodGet, "/api/v1/flats?wing=A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeAs[[]memberapp.FlatResponse](t, w)
	assert.Equal(t, int64(2), env.Meta.Total)

	w = api.do(http.MethodGet, "/api/v1/flats?page_size=2", nil)
	env = decodeAs[[]memberapp.FlatResponse](t, w)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Len(t, env.Data, 2)

	w = api.do(http.MethodGet, "/api/v1/flats?floor=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/flats", map[string]any{
		"wing": "A", "floor": "1", "flat": "105", "classification": "tenant",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "classification", decodeAs[any](t, w).Error.Details[0].Field)
}

func TestAPI_LedgerPosting(t *testing.T) {
	api := newAPI(t)
	posting := map[string]any{
		"ledger_group": "Income", "ledger_account": "Donation",
		"amount": "25.50", "direction": "add", "date": "2026-06-02",
	}

	w := api.do(http.MethodPost, "/api/v1/ledgers/postings", posting)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "25.50", decodeAs[ledgerapp.AccountResponse](t, w).Data.TotalBalance.StringFixed(2))

	posting["direction"] = "subtract"
	posting["amount"] = "5.50"
	w = api.do(http.MethodPost, "/api/v1/ledgers/postings", posting)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20.00", decodeAs[ledgerapp.AccountResponse](t, w).Data.TotalBalance.StringFixed(2))

	w = api.do(http.MethodGet, "/api/v1/ledgers/accounts?group=Income", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeAs[[]ledgerapp.AccountResponse](t, w).Data, 1)

	posting["direction"] = "credit"
	w = api.do(http.MethodPost, "/api/v1/ledgers/postings", posting)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeAs[any](t, w).Error.Code)

	w = api.do(http.MethodGet, "/api/v1/ledgers/account?group=Income", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, ledgerQuery("/api/v1/ledgers/account", "Income", "Rent"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeAs[any](t, w).Error.Code)
}

func TestAPI_RequestErrors(t *testing.T) {
	api := newAPI(t)

	t.Run("missing tenant", func(t *testing.T) {
		anon := *api
		anon.tenant = uuid.Nil
		w := anon.do(http.MethodGet, "/api/v1/notifications/pending", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeTenantRequired, decodeAs[any](t, w).Error.Code)
	})

	t.Run("bulk bill validation", func(t *testing.T) {
		body := juneBill()
		delete(body, "items")
		w := api.do(http.MethodPost, "/api/v1/bulk-bills", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeAs[any](t, w)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "items", env.Error.Details[0].Field)
	})

	t.Run("negative item amount", func(t *testing.T) {
		body := juneBill()
		body["items"].([]map[string]any)[0]["renter_amount"] = "-1"
		w := api.do(http.MethodPost, "/api/v1/bulk-bills", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bulk-bills", strings.NewReader(`{"name":`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.TenantHeaderKey, api.tenant.String())
		w := httptest.NewRecorder()
		api.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeAs[any](t, w).Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/bulk-bills/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown master bill", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/bulk-bills/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = api.do(http.MethodGet, "/api/v1/bulk-bills/"+uuid.NewString()+"/recipient-bills", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no billable recipients", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/bulk-bills", juneBill())
		require.Equal(t, http.StatusOK, w.Code)
		result := decodeAs[bulkbillapp.Result](t, w).Data
		assert.False(t, result.Success)
		assert.Equal(t, uuid.Nil, result.MasterBillID)
	})

	t.Run("health needs no tenant", func(t *testing.T) {
		anon := *api
		anon.tenant = uuid.Nil
		assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/health", nil).Code)
		assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/ready", nil).Code)
		assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/api/v1/system/info", nil).Code)
	})
}
