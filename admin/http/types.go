// Package http exposes an operator-facing HTTP surface over a dqueue.Engine: queue
// stats, browsing queued and dead-lettered messages, resurrecting dead letters, and
// purging a queue. It is wired the same way the rest of this repo's HTTP surface is,
// through http/server's Fiber server and the forward package's request/response
// plumbing, so it gets the same decoding, validation, logging, and error-response
// behavior as any other registered route.
package http

import (
	"time"

	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/pagination"
	"github.com/rise-and-shine/durablequeue/sorter"
)

// sortableListField is the only field an operator may sort queue/dead-letter listings
// by: due time. Both endpoints are otherwise ordered by next_delivery_at internally
// (see dqueue.MessageStore), so this just exposes the direction.
const sortableListField = "next_delivery_at"

type queueParam struct {
	Queue string `params:"queue" validate:"required"`
}

type messageIDParam struct {
	ID string `params:"id" validate:"required"`
}

type messageView struct {
	ID                 string            `json:"id"`
	QueueName          string            `json:"queue_name"`
	PayloadType        string            `json:"payload_type"`
	Payload            []byte            `json:"payload"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	AddedAt            time.Time         `json:"added_at"`
	NextDeliveryAt     time.Time         `json:"next_delivery_at"`
	DeliveryAttempts   int               `json:"delivery_attempts"`
	RedeliveryAttempts int               `json:"redelivery_attempts"`
	LastDeliveryError  string            `json:"last_delivery_error,omitempty"`
	IsDeadLetter       bool              `json:"is_dead_letter"`
	DeliveryMode       string            `json:"delivery_mode"`
	Key                string            `json:"key,omitempty"`
	KeyOrder           int64             `json:"key_order,omitempty"`
}

func newMessageView(m dqueue.QueuedMessage) messageView {
	return messageView{
		ID:                 m.ID,
		QueueName:          m.QueueName,
		PayloadType:        m.PayloadType,
		Payload:            m.Payload,
		Metadata:           m.Metadata,
		AddedAt:            m.AddedAt,
		NextDeliveryAt:     m.NextDeliveryAt,
		DeliveryAttempts:   m.DeliveryAttempts,
		RedeliveryAttempts: m.RedeliveryAttempts,
		LastDeliveryError:  m.LastDeliveryError,
		IsDeadLetter:       m.IsDeadLetter,
		DeliveryMode:       string(m.DeliveryMode),
		Key:                m.Key,
		KeyOrder:           m.KeyOrder,
	}
}

func newMessageViews(msgs []dqueue.QueuedMessage) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, newMessageView(m))
	}
	return views
}

// sortOrder parses a "field:direction" sort string (e.g. "next_delivery_at:desc") the
// same way the rest of this repo's list endpoints do, and returns the direction for
// sortableListField. Any other field, or an unparseable/empty string, defaults to asc.
func sortOrder(raw string) dqueue.SortOrder {
	opts := sorter.MakeFromStr(raw, sortableListField)
	if len(opts) > 0 && opts[0].D == sorter.Desc {
		return dqueue.SortDesc
	}
	return dqueue.SortAsc
}

type statsRequest struct {
	queueParam
}

type statsResponse struct {
	Queue       string `json:"queue"`
	QueuedCount int    `json:"queued_count"`
}

type listRequest struct {
	queueParam
	pagination.Params
	// Order is a sorter-style "field:direction" string, e.g. "next_delivery_at:desc".
	// Only next_delivery_at is an allowed field; anything else defaults to ascending.
	Order string `query:"order"`
}

type listResponse struct {
	Pagination pagination.Response `json:"pagination"`
	Messages   []messageView       `json:"messages"`
}

type dueSoonRequest struct {
	queueParam
	WithinSeconds int `query:"within_seconds" validate:"required,min=1"`
	Limit         int `query:"limit"`
}

type dueSoonResponse struct {
	Messages []messageView `json:"messages"`
}

type getMessageRequest struct {
	messageIDParam
}

type resurrectRequest struct {
	messageIDParam
	DelaySeconds int `json:"delay_seconds" validate:"min=0"`
}

type purgeRequest struct {
	queueParam
}

type purgeResponse struct {
	Queue  string `json:"queue"`
	Purged int    `json:"purged"`
}

type ackRequest struct {
	messageIDParam
}
