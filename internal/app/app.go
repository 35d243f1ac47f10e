package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/andy/timeledger/internal/config"
	"github.com/andy/timeledger/internal/crypto"
	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/httpapi"
	"github.com/andy/timeledger/internal/logging"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

// App is the dependency injection container for all application components
type App struct {
	Config *config.Config
	DB     *db.DB
	Log    *zap.Logger

	// User is the identity CLI and TUI commands act as
	User *domain.User

	// Services
	Clients   service.ClientService
	Projects  service.ProjectService
	People    service.PeopleService
	Entries   service.EntryService
	Timers    service.TimerService
	Invoices  service.InvoiceService
	Analytics service.AnalyticsService
	Import    service.ImportService
}

// New creates a new App instance from the default config path.
// It handles:
// 1. Loading config
// 2. Building the logger
// 3. Getting the encryption key (sqlcipher only)
// 4. Opening the database and running migrations
// 5. Creating repositories and services
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(ctx, cfg, crypto.NewKeyring(), log)
}

// NewWithConfig creates an App with a provided config and keyring (useful for testing)
func NewWithConfig(ctx context.Context, cfg *config.Config, keyring crypto.Keyring, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := domain.SetBusinessTimezone(cfg.Timezone); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	var key string
	if cfg.Database.Driver == db.DriverSQLCipher {
		var err error
		if key, err = databaseKey(keyring); err != nil {
			return nil, err
		}
	}

	database, err := db.Open(db.Options{
		Path:        cfg.Database.Path,
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, key, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := wire(ctx, cfg, database, log)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

// wire creates repositories and services over an open database
func wire(ctx context.Context, cfg *config.Config, database *db.DB, log *zap.Logger) (*App, error) {
	taxRate, err := cfg.TaxRate()
	if err != nil {
		return nil, err
	}
	invoiceOpts := service.InvoiceOptions{
		DefaultDueDays: cfg.Invoice.DefaultDueDays,
		DefaultTaxRate: taxRate,
		LineItems:      service.LineItemMode(cfg.Invoice.LineItems),
	}

	// Create repositories
	clientRepo := repository.NewClientRepo(database)
	projectRepo := repository.NewProjectRepo(database)
	userRepo := repository.NewUserRepo(database)
	subRepo := repository.NewSubcontractorRepo(database)
	entryRepo := repository.NewEntryRepo(database)
	timerRepo := repository.NewTimerRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)
	analyticsRepo := repository.NewAnalyticsRepo(database)

	// Create services with their dependencies
	rates := service.NewRateResolver(projectRepo, clientRepo)
	a := &App{
		Config:    cfg,
		DB:        database,
		Log:       log,
		Clients:   service.NewClientService(clientRepo),
		Projects:  service.NewProjectService(projectRepo, clientRepo),
		People:    service.NewPeopleService(userRepo, subRepo),
		Entries:   service.NewEntryService(entryRepo, projectRepo, subRepo, rates),
		Timers:    service.NewTimerService(database, timerRepo, entryRepo, rates, nil),
		Invoices:  service.NewInvoiceService(database, invoiceRepo, entryRepo, clientRepo, invoiceOpts, nil, log),
		Analytics: service.NewAnalyticsService(analyticsRepo, invoiceRepo),
		Import:    service.NewImportService(database, clientRepo, projectRepo, entryRepo, invoiceRepo, rates, log),
	}

	user, err := a.People.GetUser(ctx, cfg.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load configured user %d: %w", cfg.User.ID, err)
	}
	a.User = user
	return a, nil
}

// Scope is the visibility of the configured user
func (a *App) Scope() domain.Scope {
	return a.User.Scope()
}

// Issuer is the firm printed on invoices
func (a *App) Issuer() export.Issuer {
	u := a.Config.User
	return export.Issuer{Name: u.Name, Email: u.Email, Address: u.Address, Phone: u.Phone}
}

// HTTPServer builds the API server from the configured services
func (a *App) HTTPServer() *httpapi.Server {
	svc := httpapi.Services{
		Clients:   a.Clients,
		Projects:  a.Projects,
		People:    a.People,
		Entries:   a.Entries,
		Timers:    a.Timers,
		Invoices:  a.Invoices,
		Analytics: a.Analytics,
		Import:    a.Import,
	}
	opts := httpapi.Options{
		Addr:         a.Config.Server.Addr,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		Issuer:       a.Issuer(),
	}
	return httpapi.New(svc, opts, a.Log)
}

// Close cleanly shuts down the application
func (a *App) Close() error {
	_ = a.Log.Sync()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// SaveConfig saves the current configuration to disk
func (a *App) SaveConfig() error {
	return a.Config.Save(config.DefaultConfigPath())
}

// databaseKey returns the stored key, or sets one up on first run
func databaseKey(keyring crypto.Keyring) (string, error) {
	key, err := keyring.GetKey()
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, crypto.ErrKeyNotFound) {
		return "", err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no database key stored; set %s or run interactively", crypto.EnvKey)
	}

	fmt.Println("Setting up database encryption for the first time...")
	password, err := promptForPassword()
	if err != nil {
		return "", fmt.Errorf("failed to set password: %w", err)
	}
	if err := keyring.SetKey(password); err != nil {
		return "", fmt.Errorf("failed to store encryption key: %w", err)
	}
	return password, nil
}

// promptForPassword prompts user for a new database password (first run)
func promptForPassword() (string, error) {
	fmt.Println()
	fmt.Println("Your billing data will be encrypted with a password.")
	fmt.Println("This password will be stored securely in your system keyring.")
	fmt.Println()
	fmt.Print("Enter a password for database encryption: ")

	// Read password securely (no echo)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return "", errors.New("password cannot be empty")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}

	fmt.Println()
	fmt.Println("✓ Database encryption configured successfully")
	fmt.Println()

	return string(password), nil
}
