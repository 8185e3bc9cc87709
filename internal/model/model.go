package model

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	SourceManual   = "manual"
	SourceWhatsApp = "whatsapp"
)

type Tenant struct {
	ID        string
	Name      string
	TenantKey string
	CreatedAt time.Time
}

type User struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Client struct {
	ID        string
	TenantID  string
	Phone     string
	Name      string
	CreatedAt time.Time
}

type Appointment struct {
	ID        string
	TenantID  string
	ClientID  string
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Source    string
	CreatedAt time.Time
}
