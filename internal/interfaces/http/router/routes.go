package router

import (
	"github.com/societyledger/backend/internal/interfaces/http/handler"
)

// Handlers are the API handlers served under /api/v1
type Handlers struct {
	BulkBills     *handler.BulkBillHandler
	Ledgers       *handler.LedgerHandler
	Flats         *handler.FlatHandler
	Notifications *handler.NotificationHandler
	System        *handler.SystemHandler
}

// DomainGroups returns the route groups of the billing API
func DomainGroups(h Handlers) []RouteRegistrar {
	bulkBills := NewDomainGroup("bulk-bills", "/bulk-bills").
		POST("", h.BulkBills.Generate).
		GET("/:id", h.BulkBills.Get).
		GET("/:id/recipient-bills", h.BulkBills.ListRecipientBills).
		GET("/:id/items-ledger", h.BulkBills.ItemsLedger)

	ledgers := NewDomainGroup("ledgers", "/ledgers").
		POST("/postings", h.Ledgers.Post).
		GET("/account", h.Ledgers.GetAccount).
		GET("/accounts", h.Ledgers.ListAccounts).
		GET("/daily", h.Ledgers.ListDailyDeltas).
		GET("/reconcile", h.Ledgers.Reconcile)

	flats := NewDomainGroup("flats", "/flats").
		POST("", h.Flats.Register).
		GET("", h.Flats.List).
		GET("/:wing/:floor/:flat", h.Flats.Get)

	notifications := NewDomainGroup("notifications", "/notifications").
		GET("/pending", h.Notifications.ListPending).
		DELETE("/pending/:masterBillId", h.Notifications.Ack)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []RouteRegistrar{bulkBills, ledgers, flats, notifications, system}
}
