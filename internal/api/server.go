package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shopyard/auth-service/config"
	"github.com/shopyard/auth-service/infra/queue"
	"github.com/shopyard/auth-service/internal/api/rest/handlers"
	"github.com/shopyard/auth-service/internal/clients/google"
	"github.com/shopyard/auth-service/internal/domain"
	"github.com/shopyard/auth-service/internal/helper"
	"github.com/shopyard/auth-service/internal/repository"
	"github.com/shopyard/auth-service/internal/services"
	"github.com/shopyard/auth-service/pkg/cloudinary"
	"github.com/shopyard/auth-service/pkg/mailer"
)

func StartServer(cfg config.Config) {
	app := fiber.New()

	// ---------- CORS ----------
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.BaseURL,
		AllowHeaders:     "Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// ---------- DB ----------
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}
	log.Println("database connected")

	// ---------- MIGRATION (guarded by advisory lock) ----------
	const migrateLockID int64 = 20260417

	if err := db.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
		log.Fatalf("migration lock error: %v", err)
	}
	defer func() {
		_ = db.Exec("SELECT pg_advisory_unlock(?)", migrateLockID).Error
	}()

	if err := db.AutoMigrate(&domain.Account{}); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("migration successful")

	// ---------- Infra ----------
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	kafkaProducer := queue.NewProducer(
		cfg.KafkaBroker,
		cfg.KafkaTopic,
		cfg.KafkaUsername,
		cfg.KafkaPassword,
	)

	cld, err := cloudinary.New()
	if err != nil {
		log.Fatalf("cloudinary init error: %v", err)
	}
	uploader := cloudinary.NewCloudinaryUploader(cld)

	smtpMailer := mailer.NewSMTPMailer(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPassword,
		cfg.MailFrom,
		cfg.MailFromName,
	)

	googleClient := google.New(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
	)

	authHelper := helper.SetupAuth(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// ---------- Repositories ----------
	accountRepo := repository.NewAccountRepository(db)
	otpStore := repository.NewOTPStore(rdb, cfg.OTPTTL)

	// ---------- Service ----------
	authSvc := services.NewAuthService(
		accountRepo,
		otpStore,
		authHelper,
		smtpMailer,
		uploader,
		kafkaProducer,
		googleClient,
		cfg.ResetTokenTTL,
		cfg.OTPTTL,
		cfg.ResetBaseURL,
	)

	// ---------- Handler ----------
	authHandler := handlers.NewAuthHandler(authSvc, authHelper, cfg.FrontendCallbackURL)
	authHandler.SetupRoutes(app)

	// ---------- Health ----------
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ---------- Listen ----------
	addr := cfg.ServerPort
	log.Println("listening on", addr)
	log.Fatal(app.Listen(addr))
}
