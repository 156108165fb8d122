package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Provider is a psychologist offering sessions. Only the fields the booking
// core needs are mapped.
type Provider struct {
	bun.BaseModel `bun:"table:psychologists,alias:p"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	Email     string    `bun:"email,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (p Provider) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Client struct {
	bun.BaseModel `bun:"table:clients,alias:c"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	Email     string    `bun:"email,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (c Client) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Parties are the two people a booking concerns.
type Parties struct {
	Client   Client
	Provider Provider
}

// ClientPackage entitles a client to a number of prepaid sessions with one
// provider. SessionPrice is what each of those sessions is billed at.
type ClientPackage struct {
	bun.BaseModel `bun:"table:client_packages,alias:cp"`

	ID                uuid.UUID       `bun:"id,pk,type:uuid"`
	ClientID          uuid.UUID       `bun:"client_id,notnull,type:uuid"`
	ProviderID        uuid.UUID       `bun:"psychologist_id,notnull,type:uuid"`
	TotalSessions     int             `bun:"total_sessions,notnull"`
	RemainingSessions int             `bun:"remaining_sessions,notnull"`
	SessionPrice      decimal.Decimal `bun:"session_price,notnull,type:numeric(10,2)"`
	CreatedAt         time.Time       `bun:"created_at,notnull"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull"`
}
