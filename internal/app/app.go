package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/db"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/service"
	"github.com/templui/cutout/internal/storage"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	Storage         storage.Storage
	AuthService     *service.AuthService
	UserService     *service.UserService
	EmailService    *service.EmailService
	ImageService    *service.ImageService
	IdentityService *service.IdentityService
	CleanupService  *service.CleanupService
	Sweeper         *service.Sweeper
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(context.Background(), database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	imageStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return NewWithDeps(cfg, database, imageStorage), nil
}

// NewWithDeps wires services on an open, migrated database.
func NewWithDeps(cfg *config.Config, database *sqlx.DB, imageStorage storage.Storage) *App {
	// Repositories
	userRepository := repository.NewUserRepository(database)
	imageRepository := repository.NewImageRepository(database)
	accountRepository := repository.NewAccountRepository(database)
	tokenRepository := repository.NewTokenRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(
		accountRepository,
		tokenRepository,
		emailService,
		cfg.JWTSecret,
		cfg.SecureCookies(),
		cfg.JWTExpiry,
		cfg.TokenMagicLinkExpiry,
	)
	userService := service.NewUserService(userRepository)
	verifier := service.NewOwnershipVerifier(userRepository)
	imageService := service.NewImageService(imageRepository, userRepository, imageStorage, verifier)
	identityService := service.NewIdentityService(
		database,
		userRepository,
		imageRepository,
		tokenRepository,
		authService,
		emailService,
		cfg.TokenClaimExpiry,
	)
	cleanupService := service.NewCleanupService(imageRepository, imageStorage)

	var sweeper *service.Sweeper
	if cfg.CleanupInterval > 0 {
		sweeper = service.NewSweeper(cleanupService, tokenRepository, cfg.CleanupInterval)
	}

	return &App{
		Cfg:             cfg,
		DB:              database,
		Storage:         imageStorage,
		AuthService:     authService,
		UserService:     userService,
		EmailService:    emailService,
		ImageService:    imageService,
		IdentityService: identityService,
		CleanupService:  cleanupService,
		Sweeper:         sweeper,
	}
}

func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
