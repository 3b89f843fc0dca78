package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Типы событий жизненного цикла документа
const (
	EventDocumentSent         = "document_sent"
	EventDocumentViewed       = "document_viewed"
	EventDocumentSigned       = "document_signed"
	EventDocumentLocked       = "document_locked"
	EventDocumentDeclined     = "document_declined"
	EventPricingUpdated       = "pricing_updated"
	EventBlockchainVerified   = "blockchain_verified"
	EventEthscriptionComplete = "ethscription_completed"
	EventEthscriptionFailed   = "ethscription_failed"
)

type EventPayload map[string]any

func (p EventPayload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *EventPayload) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип payload: %T", src)
	}
}

// DocumentEvent : запись append-only журнала аудита.
// Журнал никогда не обновляется и не удаляется — это каноническая история
// и для споров, и для отладки асинхронного воркера.
type DocumentEvent struct {
	UUID          string       `db:"uuid" json:"uuid"`
	DocumentUUID  string       `db:"document_uuid" json:"document_uuid"`
	RecipientUUID *string      `db:"recipient_uuid" json:"recipient_uuid,omitempty"`
	EventType     string       `db:"event_type" json:"event_type"`
	Payload       EventPayload `db:"payload" json:"payload"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}
