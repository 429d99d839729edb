package relationaldb

import (
	"context"
	"time"

	"github.com/boomsapp/boomsd/internal/core/gift"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
)

// PaymentStatus is the lifecycle state of a provider payment row.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// PaymentKind distinguishes money entering from money leaving.
type PaymentKind string

const (
	PaymentDeposit    PaymentKind = "deposit"
	PaymentWithdrawal PaymentKind = "withdrawal"
)

// PaymentTransaction mirrors one provider-side money movement. The
// merchant reference is the idempotency key the webhook reconciler
// matches on.
type PaymentTransaction struct {
	ID                 int64
	UserID             int64
	Provider           string
	Kind               PaymentKind
	MerchantReference  string
	ProviderReference  string
	GrossAmount        money.Amount
	ProviderFee        money.Amount
	PlatformCommission money.Amount
	NetAmount          money.Amount
	Status             PaymentStatus
	PhoneNumber        string
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// Interaction is one recorded social action against a BOOM.
type Interaction struct {
	ID        int64
	UserID    int64
	BoomID    int64
	Action    string
	Channel   string
	Impact    money.Amount
	CreatedAt time.Time
}

// AdminAuditEntry records a manual-review flag or admin action.
type AdminAuditEntry struct {
	ID        int64
	UserID    int64
	Action    string
	Detail    string
	Amount    money.Amount
	CreatedAt time.Time
}

// PlatformSetting is one versioned configuration row. Updates insert a
// new version; reads take the highest version per key.
type PlatformSetting struct {
	Key       string
	Value     string
	Version   int64
	UpdatedBy int64
	UpdatedAt time.Time
}

// UserRepository handles account rows and their balance rows.
type UserRepository interface {
	// CreateUser inserts the user plus its zero-amount real and virtual
	// balance rows in the same transaction.
	CreateUser(ctx context.Context, user *inventory.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*inventory.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*inventory.User, error)
	GetUserByEmail(ctx context.Context, email string) (*inventory.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status inventory.Status, suspendedUntil *time.Time) error
}

// BalanceRepository handles the dual balance rows. ForUpdate variants
// take a row lock; callers lock user balances in ascending user ID.
type BalanceRepository interface {
	GetRealBalance(ctx context.Context, userID int64) (*ledger.RealBalance, error)
	GetRealBalanceForUpdate(ctx context.Context, userID int64) (*ledger.RealBalance, error)
	UpdateRealBalance(ctx context.Context, balance *ledger.RealBalance) error

	GetVirtualBalance(ctx context.Context, userID int64) (*ledger.VirtualBalance, error)
	GetVirtualBalanceForUpdate(ctx context.Context, userID int64) (*ledger.VirtualBalance, error)
	UpdateVirtualBalance(ctx context.Context, balance *ledger.VirtualBalance) error
}

// TreasuryRepository handles the singleton platform purse. The treasury
// row is always locked last.
type TreasuryRepository interface {
	GetTreasury(ctx context.Context) (*ledger.Treasury, error)
	GetTreasuryForUpdate(ctx context.Context) (*ledger.Treasury, error)
	UpdateTreasury(ctx context.Context, treasury *ledger.Treasury) error
}

// BoomRepository handles BOOM rows including their embedded social state.
type BoomRepository interface {
	CreateBoom(ctx context.Context, boom *inventory.Boom) (int64, error)
	GetBoom(ctx context.Context, id int64) (*inventory.Boom, error)
	GetBoomForUpdate(ctx context.Context, id int64) (*inventory.Boom, error)
	GetBoomByToken(ctx context.Context, tokenID string) (*inventory.Boom, error)
	UpdateBoom(ctx context.Context, boom *inventory.Boom) error
	ListActiveBooms(ctx context.Context, limit, offset int) ([]*inventory.Boom, error)
}

// HoldingRepository handles ownership rows.
type HoldingRepository interface {
	CreateHolding(ctx context.Context, holding *inventory.Holding) (int64, error)
	GetHolding(ctx context.Context, id int64) (*inventory.Holding, error)
	GetHoldingForUpdate(ctx context.Context, id int64) (*inventory.Holding, error)
	UpdateHolding(ctx context.Context, holding *inventory.Holding) error
	// DeleteHolding removes the row outright. Only the withdrawal
	// pipeline uses this; everything else soft-deletes via deleted_at.
	DeleteHolding(ctx context.Context, id int64) error
	ListHoldingsByUser(ctx context.Context, userID int64) ([]*inventory.Holding, error)
	CountHoldersOfBoom(ctx context.Context, boomID int64) (int64, error)
}

// GiftRepository handles gift rows across both state machines.
type GiftRepository interface {
	CreateGift(ctx context.Context, g *gift.Gift) (int64, error)
	GetGift(ctx context.Context, id int64) (*gift.Gift, error)
	GetGiftForUpdate(ctx context.Context, id int64) (*gift.Gift, error)
	GetGiftByReference(ctx context.Context, reference string) (*gift.Gift, error)
	UpdateGift(ctx context.Context, g *gift.Gift) error
	// ListSweepableGifts returns PAID gifts past expiry plus CREATED
	// gifts past the abandonment window, oldest first.
	ListSweepableGifts(ctx context.Context, now time.Time, limit int) ([]*gift.Gift, error)
	ListGiftsForUser(ctx context.Context, userID int64, limit, offset int) ([]*gift.Gift, error)
}

// WalletRepository handles the append-only transaction log.
type WalletRepository interface {
	AppendEntry(ctx context.Context, entry *ledger.Entry) (int64, error)
	GetEntry(ctx context.Context, id int64) (*ledger.Entry, error)
	ListEntriesByUser(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Entry, error)
}

// PaymentRepository handles provider payment rows.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *PaymentTransaction) (int64, error)
	GetPayment(ctx context.Context, id int64) (*PaymentTransaction, error)
	// GetPaymentByReferenceForUpdate locks the row matched by
	// (provider, merchant_reference); the webhook reconciler's
	// idempotency pivot.
	GetPaymentByReferenceForUpdate(ctx context.Context, provider, merchantReference string) (*PaymentTransaction, error)
	UpdatePayment(ctx context.Context, p *PaymentTransaction) error
	ListPendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*PaymentTransaction, error)
}

// InteractionRepository handles the social interaction log.
type InteractionRepository interface {
	CreateInteraction(ctx context.Context, i *Interaction) (int64, error)
	CountRecentInteractions(ctx context.Context, userID, boomID int64, action string, since time.Time) (int64, error)
	CountBoomShares(ctx context.Context, boomID int64, since time.Time) (int64, error)
}

// AdminRepository handles the audit log and versioned settings.
type AdminRepository interface {
	AppendAudit(ctx context.Context, entry *AdminAuditEntry) (int64, error)
	ListAudit(ctx context.Context, limit, offset int) ([]*AdminAuditEntry, error)

	GetSetting(ctx context.Context, key string) (*PlatformSetting, error)
	PutSetting(ctx context.Context, setting *PlatformSetting) error
}

// TransactionContext represents a database transaction with repository access.
// Everything a pipeline reads and writes goes through one of these.
type TransactionContext interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Users() UserRepository
	Balances() BalanceRepository
	Treasury() TreasuryRepository
	Booms() BoomRepository
	Holdings() HoldingRepository
	Gifts() GiftRepository
	Wallet() WalletRepository
	Payments() PaymentRepository
	Interactions() InteractionRepository
	Admin() AdminRepository
}

// RepositoryManager provides non-transactional repository access plus
// transaction management.
type RepositoryManager interface {
	Users() UserRepository
	Balances() BalanceRepository
	Treasury() TreasuryRepository
	Booms() BoomRepository
	Holdings() HoldingRepository
	Gifts() GiftRepository
	Wallet() WalletRepository
	Payments() PaymentRepository
	Interactions() InteractionRepository
	Admin() AdminRepository

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	Begin(ctx context.Context) (TransactionContext, error)
	// WithTransaction runs fn inside a transaction, committing on nil
	// and rolling back on error.
	WithTransaction(ctx context.Context, fn func(TransactionContext) error) error
}
