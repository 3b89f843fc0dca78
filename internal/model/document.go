package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusViewed    DocumentStatus = "viewed"
	StatusCompleted DocumentStatus = "completed"
	StatusDeclined  DocumentStatus = "declined"
	StatusExpired   DocumentStatus = "expired"
)

// Типы контентных блоков документа. Порядок блоков в документе значим:
// от него зависят и отрисовка, и канонический хэш.
const (
	BlockTypeText         = "text"
	BlockTypeHeading      = "heading"
	BlockTypeImage        = "image"
	BlockTypeTable        = "table"
	BlockTypeSignature    = "signature"
	BlockTypeDate         = "date"
	BlockTypeCheckbox     = "checkbox"
	BlockTypeTextInput    = "text-input"
	BlockTypeDivider      = "divider"
	BlockTypeSpacer       = "spacer"
	BlockTypePageBreak    = "page-break"
	BlockTypePricingTable = "pricing-table"
	BlockTypePayment      = "payment"
	BlockTypeDataURI      = "data-uri-inscription"
)

// Block : один типизированный блок контента
type Block struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Content map[string]any `json:"content,omitempty"`
}

// DocumentContent : упорядоченный список блоков, хранится одной JSONB-колонкой
type DocumentContent []Block

func (c DocumentContent) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *DocumentContent) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип контента: %T", src)
	}
}

// PaymentSettings : настройки оплаты, записанные при отправке документа.
// Если Enabled=true, перекрывают платёжный блок внутри контента.
type PaymentSettings struct {
	Enabled  bool    `json:"enabled"`
	Required bool    `json:"required"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Timing   string  `json:"timing"`
}

// DocumentSettings : конфигурация документа, задаётся при отправке
type DocumentSettings struct {
	RequireSigningOrder bool             `json:"requireSigningOrder"`
	Payment             *PaymentSettings `json:"payment,omitempty"`
}

func (s DocumentSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *DocumentSettings) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = DocumentSettings{}
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип настроек: %T", src)
	}
}

type Document struct {
	UUID                 string           `db:"uuid" json:"uuid"`
	OwnerUUID            string           `db:"owner_uuid" json:"owner_uuid"`
	Title                string           `db:"title" json:"title"`
	Content              DocumentContent  `db:"content" json:"content"`
	Status               DocumentStatus   `db:"status" json:"status"`
	Settings             DocumentSettings `db:"settings" json:"settings"`
	ExpiresAt            *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	LockedAt             *time.Time       `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy             *string          `db:"locked_by" json:"locked_by,omitempty"`
	BlockchainTxHash     *string          `db:"blockchain_tx_hash" json:"blockchain_tx_hash,omitempty"`
	BlockchainDocHash    *string          `db:"blockchain_doc_hash" json:"blockchain_doc_hash,omitempty"`
	BlockchainVerifiedAt *time.Time       `db:"blockchain_verified_at" json:"blockchain_verified_at,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// IsExpired : истечение срока вычисляется при чтении, в БД статус expired не хранится
func (d *Document) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}

// FindBlock : возвращает индекс блока с данным id или -1
func (c DocumentContent) FindBlock(blockID string) int {
	for i := range c {
		if c[i].ID == blockID {
			return i
		}
	}
	return -1
}

// Payment : платёж по документу; учитывается воркером якорения
// (paymentCollected = существует платёж со статусом succeeded)
type Payment struct {
	UUID         string    `db:"uuid" json:"uuid"`
	DocumentUUID string    `db:"document_uuid" json:"document_uuid"`
	Amount       float64   `db:"amount" json:"amount"`
	Currency     string    `db:"currency" json:"currency"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)
