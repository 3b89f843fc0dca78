package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type RecipientRole string

const (
	RoleSigner   RecipientRole = "signer"
	RoleViewer   RecipientRole = "viewer"
	RoleApprover RecipientRole = "approver"
)

type RecipientStatus string

const (
	RecipientPending  RecipientStatus = "pending"
	RecipientViewed   RecipientStatus = "viewed"
	RecipientSigned   RecipientStatus = "signed"
	RecipientDeclined RecipientStatus = "declined"
)

// SignatureData : данные подписи, записываются ровно один раз
type SignatureData struct {
	// Type — drawn / typed / uploaded
	Type     string    `json:"type"`
	Data     string    `json:"data"`
	SignedAt time.Time `json:"signedAt"`
}

func (s SignatureData) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SignatureData) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип данных подписи: %T", src)
	}
}

// Recipient : один приглашённый участник документа.
// AccessToken — единственный credential публичного канала подписания,
// никогда не выводится из email или uuid документа.
type Recipient struct {
	UUID          string          `db:"uuid" json:"uuid"`
	DocumentUUID  string          `db:"document_uuid" json:"document_uuid"`
	Email         string          `db:"email" json:"email"`
	Name          string          `db:"name" json:"name"`
	Role          RecipientRole   `db:"role" json:"role"`
	AccessToken   string          `db:"access_token" json:"-"`
	SigningOrder  int             `db:"signing_order" json:"signing_order"`
	Status        RecipientStatus `db:"status" json:"status"`
	SignatureData *SignatureData  `db:"signature_data" json:"signature_data,omitempty"`
	ViewedAt      *time.Time      `db:"viewed_at" json:"viewed_at,omitempty"`
	SignedAt      *time.Time      `db:"signed_at" json:"signed_at,omitempty"`
	IPAddress     *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent     *string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// SigningSession : пара (получатель, документ), разрешённая по токену;
// кэшируется в Redis после первого просмотра
type SigningSession struct {
	Document  *Document  `json:"document"`
	Recipient *Recipient `json:"recipient"`
}

// PaymentRequirement : результат разрешения двух источников платёжной конфигурации
type PaymentRequirement struct {
	Required bool    `json:"required"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Timing   string  `json:"timing,omitempty"`
}

// SignResult : итог принятой подписи
type SignResult struct {
	DocumentUUID string    `json:"document_uuid"`
	AllSigned    bool      `json:"all_signed"`
	SignedAt     time.Time `json:"signed_at"`
}
