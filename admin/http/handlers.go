package http

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/pagination"
)

// handlers binds the admin routes to a dqueue.Engine. Each method has the
// func(context.Context, *Req) (*Resp, error) shape forward.ToUseCase expects, so the
// surrounding decode/validate/log/encode plumbing stays identical to every other
// registered route.
type handlers struct {
	engine     dqueue.Engine
	pagination pagination.Config
}

func newHandlers(engine dqueue.Engine, paginationCfg pagination.Config) *handlers {
	return &handlers{engine: engine, pagination: paginationCfg}
}

func (h *handlers) stats(ctx context.Context, req *statsRequest) (*statsResponse, error) {
	count, err := h.engine.QueuedCount(ctx, req.Queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return &statsResponse{Queue: req.Queue, QueuedCount: count}, nil
}

func (h *handlers) listQueued(ctx context.Context, req *listRequest) (*listResponse, error) {
	req.Params.Normalize(h.pagination)
	limit, offset := req.Params.ToLimitOffset()

	msgs, err := h.engine.ListQueued(ctx, req.Queue, sortOrder(req.Order), offset, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	total, err := h.engine.QueuedCount(ctx, req.Queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &listResponse{
		Pagination: req.Params.NewResponse(int64(total)),
		Messages:   newMessageViews(msgs),
	}, nil
}

func (h *handlers) listDeadLetters(ctx context.Context, req *listRequest) (*listResponse, error) {
	req.Params.Normalize(h.pagination)
	limit, offset := req.Params.ToLimitOffset()

	msgs, err := h.engine.ListDeadLetters(ctx, req.Queue, sortOrder(req.Order), offset, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &listResponse{
		Pagination: req.Params.NewResponse(int64(len(msgs))),
		Messages:   newMessageViews(msgs),
	}, nil
}

func (h *handlers) dueSoon(ctx context.Context, req *dueSoonRequest) (*dueSoonResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = h.pagination.DefaultLimit
	}

	upTo := time.Now().Add(time.Duration(req.WithinSeconds) * time.Second)
	msgs, err := h.engine.QueryDueSoon(ctx, req.Queue, upTo, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &dueSoonResponse{Messages: newMessageViews(msgs)}, nil
}

func (h *handlers) getMessage(ctx context.Context, req *getMessageRequest) (*messageView, error) {
	msg, err := h.engine.GetMessage(ctx, req.ID)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	view := newMessageView(*msg)
	return &view, nil
}

func (h *handlers) getDeadLetter(ctx context.Context, req *getMessageRequest) (*messageView, error) {
	msg, err := h.engine.GetDeadLetterMessage(ctx, req.ID)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	view := newMessageView(*msg)
	return &view, nil
}

func (h *handlers) resurrect(ctx context.Context, req *resurrectRequest) (*messageView, error) {
	msg, err := h.engine.ResurrectDeadLetter(ctx, req.ID, time.Duration(req.DelaySeconds)*time.Second)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	view := newMessageView(*msg)
	return &view, nil
}

func (h *handlers) purge(ctx context.Context, req *purgeRequest) (*purgeResponse, error) {
	n, err := h.engine.Purge(ctx, req.Queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return &purgeResponse{Queue: req.Queue, Purged: n}, nil
}

func (h *handlers) ack(ctx context.Context, req *ackRequest) error {
	return errx.Wrap(h.engine.AcknowledgeAsHandled(ctx, req.ID))
}
