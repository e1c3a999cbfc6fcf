package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

// ── Configurable labels (no DB constraint) ──

const (
	MembershipRegular  = "regular"
	MembershipSilver   = "silver"
	MembershipGold     = "gold"
	MembershipPlatinum = "platinum"
)

// Settings section keys.
const (
	SettingStore   = "store"
	SettingReceipt = "receipt"
	SettingPayment = "payment"
	SettingPrinter = "printer"
)
