package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hackpot-service/handlers"
	"hackpot-service/middleware"
	"hackpot-service/models"
	"hackpot-service/services"
	"hackpot-service/utils"
	"hackpot-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	serviceToken := os.Getenv("HACKPOT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("HACKPOT_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := utils.InitR2(ctx); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !utils.R2Enabled() {
		log.Println("⚠️  R2_BUCKET_NAME not set, achievement icon uploads disabled")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get database handle:", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.User{},
		&models.ConnectedWallet{},
		&models.Achievement{},
		&models.UserAchievementProgress{},
		&models.Loop{},
		&models.LoopEntry{},
		&models.ReferralTier{},
		&models.ReferralStats{},
		&models.ReferralHistory{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	notifier := services.NewUnlockNotifier()
	progressionService := services.NewProgressionService(db)
	achievementService := services.NewAchievementService(db, progressionService, notifier)
	if raw := os.Getenv("EARLY_USER_CUTOFF"); raw != "" {
		cutoff, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Fatal("invalid EARLY_USER_CUTOFF (want RFC3339):", err)
		}
		achievementService.EarlyUserCutoff = cutoff
	}
	userService := services.NewUserService(db, achievementService)
	loopService := services.NewLoopService(db, achievementService)
	referralService := services.NewReferralService(db, achievementService)

	if err := referralService.SeedTiers(ctx); err != nil {
		log.Fatal("failed to seed referral tiers:", err)
	}

	sched, err := services.StartScheduler(notifier, referralService)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}
	}()

	// --- Sync workers (profiles and wallets are owned by other services) ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Println("⚠️  SYNC_SERVICE_URL not set, profile and wallet sync disabled")
	} else {
		profileWorker := workers.NewProfileSyncWorker(db, syncServiceURL, serviceToken, utils.HTTPClient,
			func(ctx context.Context, userID string) {
				achievementService.CheckProgress(ctx, userID, services.AccountEvent{})
			})
		profileWorker.Start(ctx)

		walletSyncClient := workers.NewWalletSyncClient(db, syncServiceURL, serviceToken, utils.HTTPClient)
		go workers.PollWallets(ctx, walletSyncClient, 10*time.Second)
	}

	var authClient *services.AuthServiceClient
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		authClient = services.NewAuthServiceClient(authURL, serviceToken, utils.HTTPClient)
	} else {
		log.Println("⚠️  AUTH_SERVICE_URL not set, achievement SSE stream disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024, // icons
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		DB:           db,
		Achievements: achievementService,
		Progression:  progressionService,
		Users:        userService,
		Loops:        loopService,
		Referrals:    referralService,
		AuthClient:   authClient,
	})

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
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
