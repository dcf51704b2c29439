package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Demideni/beavbet1-sub000/config"
	"github.com/Demideni/beavbet1-sub000/handlers"
	"github.com/Demideni/beavbet1-sub000/middleware"
	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/Demideni/beavbet1-sub000/services"
	"github.com/Demideni/beavbet1-sub000/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.GatewayToken == "" {
		log.Fatal("❌ ARENA_SERVICE_TOKEN is not set — service cannot authenticate Gateway")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Duel{},
		&models.DuelPlayer{},
		&models.MatchReport{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentMatch{},
		&models.WalletAccount{},
		&models.WalletTransaction{},
		&models.Rating{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	provider := services.NewPoolConfigProvider(cfg.ServerPool)
	notifier := services.NewGameServerNotifier(cfg.RconPassword)
	wallet := services.NewWalletService(db)
	sweeper := services.NewSweeper(db, wallet, cfg.StaleOpenWindow)
	ratings := services.NewRatingService(db)
	duels := services.NewDuelService(db, wallet, provider, notifier, cfg.ReadyWindow, cfg.HouseRake)
	duels.Sweeper = sweeper
	bracket := services.NewBracketService(db, wallet, provider, notifier, provider)
	tournaments := services.NewTournamentService(db, wallet, bracket)
	resolver := services.NewResolverService(db, wallet, ratings)
	resolver.Bracket = bracket

	app := fiber.New(fiber.Config{
		AppName: "beavbet-arena",
	})

	// Only Gateway requests allowed, no exceptions.
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupDuelRoutes(app, duels, resolver)
	handlers.SetupTournamentRoutes(app, tournaments, bracket, resolver)
	handlers.SetupProfileRoutes(app, ratings)
	handlers.SetupWalletRoutes(app, wallet)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.RunSweeper(ctx, sweeper, cfg.SweepInterval)
	tournaments.StartTournamentScheduler(ctx)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Arena engine listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
