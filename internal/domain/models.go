package domain

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&Role{},
		&User{},
		&UserRole{},
		&Institution{},
		&Student{},
		&Visa{},
		&StudentCard{},
		&LedgerEntry{},
		&VerificationRequest{},
	}
}
