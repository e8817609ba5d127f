package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&SequenceCounterModel{},
		&LedgerAccountModel{},
		&LedgerDailyDeltaModel{},
		&FlatModel{},
		&WalletDailyDeltaModel{},
		&MasterBillModel{},
		&RecipientBillModel{},
		&SettlementRecordModel{},
		&PendingJobListModel{},
	}
}
