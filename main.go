package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"game-tournament-system/config"
	"game-tournament-system/handlers"
	"game-tournament-system/middleware"
	"game-tournament-system/models"
	"game-tournament-system/services"
	"game-tournament-system/store"
	"game-tournament-system/utils"
	"game-tournament-system/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.InGameID{},
		&models.Team{},
		&models.TeamMember{},
		&models.Wallet{},
		&models.Transaction{},
		&models.WithdrawalRequest{},
		&models.Tournament{},
		&models.Participant{},
		&models.TournamentTeamEntry{},
		&models.Match{},
		&models.WinnerSubmission{},
		&models.Report{},
	); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	ledger := store.NewGormLedgerStore(db)
	tstore := store.NewGormTournamentStore(db)

	gateway := services.NewZibalGateway(cfg.Gateway.BaseURL, cfg.Gateway.PayBaseURL, cfg.Gateway.Merchant)

	var notifier services.Notifier = services.LogNotifier{}
	if cfg.Notification.ServiceURL != "" {
		notifier = services.NewNotificationClient(cfg.Notification.ServiceURL, cfg.Notification.ServiceToken)
	}

	walletService := services.NewWalletService(
		ledger, gateway, notifier,
		cfg.Wallet.MinWithdrawalAmount(),
		cfg.Wallet.WithdrawalCooldown,
		cfg.Gateway.CallbackBaseURL+"/wallet/deposits/verify",
	)
	tournamentService := services.NewTournamentService(tstore, walletService, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var uploader utils.Uploader
	if cfg.Storage.AccountID != "" {
		uploader, err = utils.NewR2Uploader(ctx,
			cfg.Storage.AccountID, cfg.Storage.AccessKeyID, cfg.Storage.AccessKeySecret,
			cfg.Storage.Bucket, cfg.Storage.CDNBaseURL)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
	} else {
		log.Println("no R2 account configured, storing uploads on local disk")
		if err := os.MkdirAll(cfg.Storage.LocalDir, os.ModePerm); err != nil {
			log.Fatal("failed to ensure upload dir: ", err)
		}
		uploader = utils.NewLocalUploader(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024,
	})

	if cfg.EdgeGatewayToken != "" {
		app.Use(middleware.GatewayAuthMiddleware(cfg.EdgeGatewayToken))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		MaxAge:       86400,
	}))

	handlers.SetupWalletRoutes(app, &handlers.WalletHandler{
		Wallet:             walletService,
		SuccessRedirectURL: cfg.Gateway.SuccessRedirectURL,
		FailureRedirectURL: cfg.Gateway.FailureRedirectURL,
	})
	handlers.SetupTournamentRoutes(app, &handlers.TournamentHandler{
		Tournaments: tournamentService,
		Uploader:    uploader,
	})
	if cfg.Storage.AccountID == "" {
		app.Static("/uploads", "./"+cfg.Storage.LocalDir)
	}

	syncWorker := workers.NewUserSyncWorker(
		tstore, ledger, walletService,
		cfg.Sync.ServiceURL, cfg.Sync.EndpointPath, cfg.Sync.ServiceToken,
		cfg.Wallet.SignupBonus(),
	)
	syncWorker.Start(ctx)

	reconWorker := workers.NewReconciliationWorker(ledger, gateway)
	reconWorker.Start(ctx)

	sched, err := tournamentService.StartStatusScheduler(ctx)
	if err != nil {
		log.Fatal("failed to start status scheduler: ", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()
	log.Printf("server running on port %s", cfg.Port)

	<-ctx.Done()
	log.Println("shutting down...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
