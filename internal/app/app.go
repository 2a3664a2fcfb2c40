package app

import (
	"context"
	"fmt"
	"syscall"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/config"
	"github.com/andy/tally/internal/crypto"
	"github.com/andy/tally/internal/db"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/andy/tally/internal/repository"
	"github.com/andy/tally/internal/service"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// App is the dependency injection container for all application components
type App struct {
	Config *config.Config
	DB     *db.DB
	Clock  clock.Clock

	// Caller is the user every command acts as
	Caller domain.Principal

	// Repositories
	ProjectRepo repository.ProjectRepository
	EntryRepo   repository.TimeEntryRepository
	InvoiceRepo repository.InvoiceRepository
	PaymentRepo repository.PaymentRepository

	// Services
	InvoiceService service.InvoiceService
	PaymentService service.PaymentService
	EntryService   service.EntryService
	BudgetService  service.BudgetService
}

// New creates a new App instance, initializing all dependencies.
// It loads config, sets up logging, fetches the encryption key, opens and migrates
// the database, then builds repositories and services.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates an App with a provided config (useful for testing)
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := logger.Setup(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	keyring := crypto.NewKeyring()

	password, err := keyring.GetKey()
	if err != nil {
		// No key exists, prompt user to set one
		fmt.Println("Setting up database encryption for the first time...")
		password, err = promptForPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to set password: %w", err)
		}

		if err := keyring.SetKey(password); err != nil {
			return nil, fmt.Errorf("failed to store encryption key: %w", err)
		}
	}

	database, err := db.Open(cfg.Database.Path, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := Wire(cfg, database, clock.New())
	log.Debug().Str("db", cfg.Database.Path).Int64("user_id", a.Caller.UserID).Msg("Application initialized")
	return a, nil
}

// Wire builds repositories and services over an open database
func Wire(cfg *config.Config, database *db.DB, clk clock.Clock) *App {
	projectRepo := repository.NewProjectRepo(database)
	entryRepo := repository.NewEntryRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)
	paymentRepo := repository.NewPaymentRepo(database)

	ledger := billing.NewLedger(clk)
	defaults := service.InvoiceDefaults{
		DueDays:      cfg.Invoice.DefaultDueDays,
		TaxRate:      cfg.Invoice.DefaultTaxRate,
		NumberPrefix: cfg.Invoice.NumberPrefix,
		Currency:     cfg.Invoice.Currency,
	}

	return &App{
		Config:         cfg,
		DB:             database,
		Clock:          clk,
		Caller:         domain.NewPrincipal(cfg.User.ID),
		ProjectRepo:    projectRepo,
		EntryRepo:      entryRepo,
		InvoiceRepo:    invoiceRepo,
		PaymentRepo:    paymentRepo,
		InvoiceService: service.NewInvoiceService(invoiceRepo, entryRepo, projectRepo, ledger, clk, defaults),
		PaymentService: service.NewPaymentService(invoiceRepo, paymentRepo, projectRepo, ledger, clk),
		EntryService:   service.NewEntryService(entryRepo, projectRepo, invoiceRepo),
		BudgetService:  service.NewBudgetService(projectRepo, invoiceRepo, entryRepo, clk),
	}
}

// Close cleanly shuts down the application
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// promptForPassword prompts user for a new database password (first run)
func promptForPassword() (string, error) {
	fmt.Println()
	fmt.Println("Your billing data will be encrypted with a password.")
	fmt.Println("This password will be stored securely in your system keyring.")
	fmt.Println()
	fmt.Print("Enter a password for database encryption: ")

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	fmt.Println()
	fmt.Println("✓ Database encryption configured successfully")
	fmt.Println()

	return string(password), nil
}

// SweepOverdue marks past-due invoices OVERDUE on startup
func (a *App) SweepOverdue(ctx context.Context) error {
	_, err := a.InvoiceService.CheckOverdue(ctx, a.Caller)
	return err
}

// SaveConfig saves the current configuration to disk
func (a *App) SaveConfig() error {
	return a.Config.Save(config.DefaultConfigPath())
}
