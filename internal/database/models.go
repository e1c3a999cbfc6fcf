package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID                uuid.UUID
	Email             string
	HashedPassword    string
	FullName          string
	Role              string
	IsActive          bool
	VerificationToken pgtype.Text
	LastLoginAt       pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Icon        pgtype.Text
	Color       pgtype.Text
	ParentID    pgtype.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID            uuid.UUID
	Name          string
	Barcode       string
	Description   pgtype.Text
	CategoryID    pgtype.UUID
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	Unit          pgtype.Text
	ImageUrl      pgtype.Text
	StockQuantity int32
	MinStockLevel int32
	MaxStockLevel int32
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Customer struct {
	ID              uuid.UUID
	Name            string
	Phone           string
	Email           pgtype.Text
	Address         pgtype.Text
	Birthday        pgtype.Date
	Notes           pgtype.Text
	MembershipLevel string
	Points          int32
	TotalSpent      pgtype.Numeric
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PointsEntry is one row of the append-only customer loyalty ledger.
type PointsEntry struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Points     int32
	Reason     pgtype.Text
	CreatedAt  time.Time
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	CustomerID    pgtype.UUID
	PaymentMethod string
	Status        string
	Subtotal      pgtype.Numeric
	Tax           pgtype.Numeric
	Total         pgtype.Numeric
	Notes         pgtype.Text
	CreatedBy     pgtype.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Quantity  int32
	Discount  pgtype.Numeric
	Subtotal  pgtype.Numeric
}

type Payment struct {
	ID          uuid.UUID
	OrderNumber string
	Amount      pgtype.Numeric
	Method      string
	Reference   pgtype.Text
	Status      string
	VerifiedAt  pgtype.Timestamptz
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Setting is one named configuration section stored as JSONB.
type Setting struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}
