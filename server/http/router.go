package serverhttp

import (
	"github.com/go-chi/chi/v5"

	"match-service/internal/matching/handler"
	"match-service/internal/middleware"
	"match-service/server/http/handlers"
)

func NewRouter(d handler.Deps) *chi.Mux {
	r := chi.NewRouter()

	// порядок важен: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(d.Log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.CORS(d.Cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(d.Cfg.MaxUploadMB) * 1024 * 1024))

	// health-check
	r.Get("/health", handlers.Health)

	// импорт фида поставщика
	r.Post("/import", handler.Import(d))

	// подбор
	r.Post("/match", handler.Match(d))
	r.Post("/match/batch", handler.MatchBatch(d))
	r.Get("/match/{id}/scores", handler.Scores(d))

	// ценовая история сырого товара
	r.Get("/products/{id}/prices", handler.PriceHistoryFor(d))

	// группы
	r.Route("/groups", func(r chi.Router) {
		r.Post("/propose", handler.ProposeGroup(d))
		r.Post("/cleanup", handler.CleanupGroups(d))
		r.Get("/{id}", handler.GetGroup(d))
		r.Post("/{id}/confirm", handler.ConfirmGroup(d))
		r.Post("/{id}/reject", handler.RejectGroup(d))
	})

	// вечные отсеивания
	r.Post("/eliminations", handler.Eliminate(d))
	r.Get("/eliminations", handler.ListEliminations(d))

	return r
}
