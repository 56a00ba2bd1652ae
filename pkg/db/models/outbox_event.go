package models

import (
	"time"

	"github.com/varejolabs/loja-backend/pkg/enums"
)

// OutboxEvent is written in the same transaction as the state change it
// announces and drained by the outbox publisher. The composite unique
// index is the backstop that keeps a replayed transition from enqueuing
// a second order_paid for the same aggregate.
type OutboxEvent struct {
	ID            int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null;uniqueIndex:idx_outbox_event_aggregate"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null;uniqueIndex:idx_outbox_event_aggregate"`
	AggregateID   int64                     `gorm:"column:aggregate_id;not null;uniqueIndex:idx_outbox_event_aggregate"`
	Payload       []byte                    `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxEventStatus   `gorm:"column:status;not null;default:'pending';index"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
