package routes

import (
	"github.com/CassieCamp/arete3-backend/internal/config"
	"github.com/CassieCamp/arete3-backend/internal/handlers"
	"github.com/CassieCamp/arete3-backend/internal/middleware"
	"github.com/CassieCamp/arete3-backend/internal/repository"
	"github.com/CassieCamp/arete3-backend/internal/services"
	notifyws "github.com/CassieCamp/arete3-backend/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	entryRepo := repository.NewEntryRepository(db)

	notificationHub := notifyws.NewHub()
	go notificationHub.Run()
	notificationService := services.NewNotificationService(notificationHub)

	relationshipService := services.NewRelationshipService(relationshipRepo, userRepo)
	invitationService := services.NewInvitationService(relationshipService, notificationService)
	entitlementService := services.NewEntitlementService(relationshipRepo, entryRepo, cfg.MaxFreeEntries)
	entryService := services.NewEntryService(db, entryRepo, relationshipRepo, cfg.MaxFreeEntries)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	relationshipHandler := handlers.NewRelationshipHandler(invitationService, relationshipService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService)
	entryHandler := handlers.NewEntryHandler(entryService)
	notificationHandler := handlers.NewNotificationHandler(notificationHub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	relationships := authProtected.Group("/relationships")
	relationships.Get("", relationshipHandler.List)
	relationships.Post("/invite", relationshipHandler.Invite)
	relationships.Post("/:id/respond", relationshipHandler.Respond)
	relationships.Post("/:id/resend", relationshipHandler.Resend)

	entitlements := authProtected.Group("/entitlements")
	entitlements.Get("/me", entitlementHandler.GetMyEntitlement)

	entries := authProtected.Group("/entries")
	entries.Post("", entryHandler.CreateEntry)
	entries.Get("", entryHandler.ListEntries)

	api.Use("/v1/ws", notificationHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(notificationHandler.HandleWebSocket))
}
