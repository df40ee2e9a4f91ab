package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"duel-arena/engine"
	"duel-arena/handlers"
	"duel-arena/middleware"
	"duel-arena/models"
	"duel-arena/services"
	"duel-arena/utils"
	"duel-arena/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	gameServiceToken := os.Getenv("GAME_SERVICE_TOKEN")
	if gameServiceToken == "" {
		log.Fatal("GAME_SERVICE_TOKEN environment variable not set")
	}
	custodyURL := os.Getenv("CUSTODY_SERVICE_URL")
	if custodyURL == "" {
		log.Fatal("CUSTODY_SERVICE_URL environment variable not set")
	}

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(gameServiceToken))

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !utils.R2Enabled() {
		log.Println("⚠️  R2_BUCKET_NAME not set, archiving matches to ./" + utils.ArchiveDir)
		if err := utils.EnsureArchiveDir(); err != nil {
			log.Fatal("failed to ensure archive dir:", err)
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.HouseRecord{},
		&models.PlayerRecord{},
		&models.MatchRecord{},
		&models.PilotProfile{},
		&models.PayoutReceipt{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledger, err := services.NewGormLedger(db, engine.DefaultConfig())
	if err != nil {
		log.Fatal("failed to initialize ledger:", err)
	}

	decimals := int32(0)
	if v := os.Getenv("CUSTODY_DECIMALS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			log.Fatalf("invalid CUSTODY_DECIMALS %q: %v", v, err)
		}
		decimals = int32(n)
	}
	custody := services.NewCustodyClient(custodyURL, gameServiceToken, decimals, db)
	coins := services.NewSeededCoins(os.Getenv("COIN_SECRET"))
	arena := engine.New(ledger, custody, engine.SystemClock, coins)

	var leaderboard *services.Leaderboard
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		leaderboard, err = services.NewLeaderboard(redisURL)
		if err != nil {
			log.Printf("⚠️  Leaderboard disabled: %v", err)
			leaderboard = nil
		} else {
			defer leaderboard.Close()
		}
	} else {
		log.Println("⚠️  REDIS_URL not set, ratings are served from the ledger")
	}

	var authClient middleware.TokenValidator
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		authClient = services.NewAuthServiceClient(authURL, gameServiceToken)
	} else {
		log.Println("⚠️  AUTH_SERVICE_URL not set, match streams are public")
	}

	duelService := services.NewDuelService(arena, db)
	playerService := services.NewPlayerService(arena, db, leaderboard)
	adminService := services.NewAdminService(arena, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if syncServiceURL := os.Getenv("SYNC_SERVICE_URL"); syncServiceURL != "" {
		syncWorker := workers.NewProfileSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", gameServiceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set, pilot profiles will not be synced")
	}
	go workers.PollReceipts(ctx, db, custody, 30*time.Second)

	sched, err := services.StartScheduler(db, playerService)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer sched.Shutdown()

	// at most 2 requests per second per pilot, bursts of 5
	handlers.SetupDuelRoutes(app, duelService, authClient, middleware.RateLimitMiddleware(rate.Limit(2), 5))
	handlers.SetupPlayerRoutes(app, playerService)
	handlers.SetupAdminRoutes(app, adminService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Receipt reconciliation running (every 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
