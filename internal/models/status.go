package models

// AccountStatus is the coarse access state of an account.
type AccountStatus string

const (
	StatusNew     AccountStatus = "new"
	StatusActive  AccountStatus = "active"
	StatusBlocked AccountStatus = "blocked"
)

// Origin records how an account came into existence.
type Origin string

const (
	OriginSelf   Origin = "self"
	OriginImport Origin = "import"
)

// AttemptKind tags ledger records and lockout counters.
type AttemptKind string

const (
	AttemptEmail AttemptKind = "email"
	AttemptCode  AttemptKind = "code"
)
