package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/grid-league/docs"
	"github.com/Dosada05/grid-league/handlers"
	"github.com/Dosada05/grid-league/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RouterConfig struct {
	JWTSecret      []byte
	APIKeys        *middleware.APIKeyAuth
	// RateLimit: общий для /api и /ws, см. middleware.RateLimit.
	RateLimit      func(http.Handler) http.Handler
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func SetupRoutes(
	router chi.Router,
	cfg RouterConfig,
	standingsHandler *handlers.StandingsHandler,
	driverHandler *handlers.DriverHandler,
	teamHandler *handlers.TeamHandler,
	seasonHandler *handlers.SeasonHandler,
	penaltyHandler *handlers.PenaltyHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{\n\t\"error\": \"the requested resource could not be found\"\n}\n"))
	})

	router.Get("/healthz", healthHandler.Healthz)

	router.Get("/swagger/doc.json", docs.Handler)
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Websocket живёт дольше любого таймаута запроса, поэтому вне группы /api.
	router.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		if cfg.APIKeys != nil {
			r.Use(cfg.APIKeys.Middleware)
		}
		r.Get("/ws/seasons/{seasonID}", webSocketHandler.ServeWs)
	})

	router.Route("/api", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}

		// Чтение для сайта и бота
		r.Group(func(r chi.Router) {
			if cfg.APIKeys != nil {
				r.Use(cfg.APIKeys.Middleware)
			}

			r.Get("/standings", standingsHandler.GetStandings)
			r.Get("/standings/teams", standingsHandler.GetTeamStandings)

			r.Get("/stats/overview", standingsHandler.GetOverview)
			r.Get("/stats/{metric}", standingsHandler.GetLeaderboard)

			r.Get("/drivers", driverHandler.ListDrivers)
			r.Get("/drivers/search", driverHandler.SearchDrivers)
			r.Get("/drivers/{driverID}", driverHandler.GetDriver)

			r.Get("/teams", teamHandler.ListTeams)
			r.Get("/teams/{teamID}", teamHandler.GetTeam)

			r.Get("/seasons", seasonHandler.ListSeasons)
			r.Get("/races", seasonHandler.ListRaces)
			r.Get("/races/{raceID}", seasonHandler.GetRace)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(middleware.RequireAdmin)

			r.Post("/races", seasonHandler.CreateRace)
			r.Put("/races/{raceID}/results", standingsHandler.SubmitRaceResults)

			r.Post("/seasons", seasonHandler.CreateSeason)
			r.Post("/seasons/{seasonID}/activate", seasonHandler.ActivateSeason)

			r.Post("/drivers", driverHandler.CreateDriver)
			r.Patch("/drivers/{driverID}", driverHandler.UpdateDriver)
			r.Post("/drivers/{driverID}/retire", driverHandler.RetireDriver)
			r.Post("/drivers/{driverID}/livery", driverHandler.UploadLivery)

			r.Post("/teams", teamHandler.CreateTeam)
			r.Patch("/teams/{teamID}", teamHandler.UpdateTeam)
			r.Post("/teams/{teamID}/logo", teamHandler.UploadLogo)
			r.Put("/teams/{teamID}/members/{driverID}", teamHandler.AddMember)
			r.Delete("/teams/{teamID}/members/{driverID}", teamHandler.RemoveMember)

			r.Get("/penalties", penaltyHandler.ListPenalties)
			r.Post("/penalties", penaltyHandler.ApplyPenalty)
			r.Delete("/penalties/{penaltyID}", penaltyHandler.RevokePenalty)

			r.Post("/exports/standings", standingsHandler.ExportStandings)
			r.Post("/standings/reload", standingsHandler.Reload)
		})
	})
}
