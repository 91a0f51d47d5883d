package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/http/server/forward"
	"github.com/rise-and-shine/durablequeue/pagination"
)

// RegisterRoutes mounts the admin surface under r, rooted at whatever prefix the
// caller's router group already carries (e.g. r.Group("/admin")).
func RegisterRoutes(r fiber.Router, engine dqueue.Engine, paginationCfg pagination.Config) {
	h := newHandlers(engine, paginationCfg)

	queues := r.Group("/queues/:queue")
	queues.Get("/stats", forward.ToUseCase(h.stats))
	queues.Get("/messages", forward.ToUseCase(h.listQueued))
	queues.Get("/dead-letters", forward.ToUseCase(h.listDeadLetters))
	queues.Get("/due-soon", forward.ToUseCase(h.dueSoon))
	queues.Delete("/", forward.ToUseCase(h.purge))

	messages := r.Group("/messages/:id")
	messages.Get("/", forward.ToUseCase(h.getMessage))
	messages.Post("/ack", forward.ToUseCaseNoResp(h.ack))

	deadLetters := r.Group("/dead-letters/:id")
	deadLetters.Get("/", forward.ToUseCase(h.getDeadLetter))
	deadLetters.Post("/resurrect", forward.ToUseCase(h.resurrect))
}
