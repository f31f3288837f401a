package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthprep/healthprep/internal/api"
	"github.com/healthprep/healthprep/internal/config"
	"github.com/healthprep/healthprep/internal/domain/appointment"
	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/domain/emrsync"
	"github.com/healthprep/healthprep/internal/domain/job"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/prepsheet"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
	"github.com/healthprep/healthprep/internal/domain/tenant"
	"github.com/healthprep/healthprep/internal/platform/alert"
	"github.com/healthprep/healthprep/internal/platform/audit"
	"github.com/healthprep/healthprep/internal/platform/db"
	"github.com/healthprep/healthprep/internal/platform/fhirclient"
	"github.com/healthprep/healthprep/internal/platform/middleware"
	"github.com/healthprep/healthprep/internal/platform/ocr"
	"github.com/healthprep/healthprep/internal/platform/phi"
)

// syncLookbackWindow bounds how far back Observations/DiagnosticReports/
// DocumentReferences are pulled on every sync — screenings only ever match
// against evidence within a few years, and a shorter window keeps every
// routine sync cheap regardless of how long a patient has been on file.
const syncLookbackWindow = 2 * 365 * 24 * time.Hour

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthprep-server",
		Short: "HealthPrep multi-tenant screening and EMR-sync server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the async job worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(true)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the async job worker pool, no HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(false)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := tenant.NewService(
				tenant.NewOrgRepoPG(pool),
				tenant.NewUserRepoPG(pool),
				tenant.NewProviderRepoPG(pool),
				tenant.NewAssignmentRepoPG(pool),
			)
			org, err := svc.CreateOrganization(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Created organization %s (%s)\n", org.Name, org.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organization name")
	cmd.AddCommand(createCmd)

	return cmd
}

// fhirClientFactory lazily builds and caches a per-organization
// fhirclient.Client: base URL, client id, and client secret all come from
// the Organization row, so unlike the shared RateLimiter/TokenStore/
// PGRecorder, one Client cannot serve every tenant.
type fhirClientFactory struct {
	orgs      tenant.OrganizationRepository
	tokens    *tenant.TokenStore
	encryptor *phi.PHIEncryptor
	limiter   *fhirclient.RateLimiter
	recorder  *fhirclient.PGRecorder
	timeout   time.Duration

	mu      sync.Mutex
	clients map[uuid.UUID]*fhirclient.Client
}

func newFHIRClientFactory(orgs tenant.OrganizationRepository, tokens *tenant.TokenStore, encryptor *phi.PHIEncryptor, limiter *fhirclient.RateLimiter, recorder *fhirclient.PGRecorder, timeout time.Duration) *fhirClientFactory {
	return &fhirClientFactory{
		orgs: orgs, tokens: tokens, encryptor: encryptor,
		limiter: limiter, recorder: recorder, timeout: timeout,
		clients: make(map[uuid.UUID]*fhirclient.Client),
	}
}

func (f *fhirClientFactory) clientFor(ctx context.Context, tenantID uuid.UUID) (*fhirclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[tenantID]; ok {
		return c, nil
	}

	org, err := f.orgs.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fhir client factory: load organization %s: %w", tenantID, err)
	}
	secret, err := f.encryptor.Decrypt(tenantID, org.EpicClientSecretEnc)
	if err != nil {
		return nil, fmt.Errorf("fhir client factory: decrypt client secret: %w", err)
	}

	tokenURL := org.EpicBaseURL + "/oauth2/token"
	tokenMgr := fhirclient.NewTokenManager(f.tokens, tokenURL, org.EpicClientID, secret)
	client := fhirclient.NewClient(org.EpicBaseURL, tokenMgr, f.limiter, f.recorder, org.FHIRHourlyCallLimit, f.timeout)
	f.clients[tenantID] = client
	return client, nil
}

// factoryFetcher adapts fhirClientFactory to emrsync.Fetcher: every method
// already receives tenantID, so one adapter serves every tenant.
type factoryFetcher struct {
	factory *fhirClientFactory
}

func (f *factoryFetcher) GetPatient(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetPatient(ctx, tenantID, providerID, epicPatientID)
}
func (f *factoryFetcher) GetConditions(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetConditions(ctx, tenantID, providerID, epicPatientID)
}
func (f *factoryFetcher) GetObservations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetObservations(ctx, tenantID, providerID, epicPatientID, cutoff)
}
func (f *factoryFetcher) GetImagingReports(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetImagingReports(ctx, tenantID, providerID, epicPatientID, cutoff)
}
func (f *factoryFetcher) GetDocumentReferences(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetDocumentReferences(ctx, tenantID, providerID, epicPatientID, cutoff)
}
func (f *factoryFetcher) GetEncounters(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetEncounters(ctx, tenantID, providerID, epicPatientID)
}
func (f *factoryFetcher) GetUpcomingAppointments(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, window time.Duration) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetUpcomingAppointments(ctx, tenantID, providerID, epicPatientID, window)
}
func (f *factoryFetcher) GetImmunizations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, vaccineCodes []string) (json.RawMessage, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.GetImmunizations(ctx, tenantID, providerID, epicPatientID, vaccineCodes)
}

// factoryWriter adapts fhirClientFactory to prepsheet.FHIRWriter.
type factoryWriter struct {
	factory *fhirClientFactory
}

func (f *factoryWriter) PostDocumentReference(ctx context.Context, tenantID, providerID uuid.UUID, resource json.RawMessage) (string, error) {
	c, err := f.factory.clientFor(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return c.PostDocumentReference(ctx, tenantID, providerID, resource)
}

func runServer(withHTTP bool) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	encryptionKey, err := decodeEncryptionKey(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid encryption key")
	}
	encryptor, err := phi.NewPHIEncryptor(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize encryptor")
	}

	auditWriter, err := audit.NewWriter(pool, cfg.AuditHashSalt, cfg.AuditLogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize audit writer")
	}
	defer auditWriter.Close()

	notifier := alert.NewLogNotifier(logger)

	orgRepo := tenant.NewOrgRepoPG(pool)
	userRepo := tenant.NewUserRepoPG(pool)
	providerRepo := tenant.NewProviderRepoPG(pool)
	assignmentRepo := tenant.NewAssignmentRepoPG(pool)
	_ = tenant.NewService(orgRepo, userRepo, providerRepo, assignmentRepo) // available for future admin routes
	tokenStore := tenant.NewTokenStore(providerRepo, encryptor)

	patientRepo := patient.NewRepoPG(pool, encryptor)
	conditionRepo := patient.NewConditionRepoPG(pool)
	screeningRepo := screening.NewRepoPG(pool)
	screeningTypeRepo := screeningtype.NewRepoPG(pool)
	appointmentRepo := appointment.NewRepoPG(pool)
	documentRepo := document.NewRepoPG(pool)
	fhirDocRepo := document.NewFHIRDocumentRepoPG(pool)
	prepSheetRepo := prepsheet.NewRepoPG(pool)

	rateLimiter := fhirclient.NewRateLimiter()
	callRecorder := fhirclient.NewPGRecorder(pool)
	fhirTimeout := time.Duration(cfg.FHIRHTTPTimeoutSeconds) * time.Second
	clientFactory := newFHIRClientFactory(orgRepo, tokenStore, encryptor, rateLimiter, callRecorder, fhirTimeout)

	jobQueue := job.NewQueue(pool)
	jobSvc := job.NewService(jobQueue, rateLimiter)

	extractor := &ocr.StdExtractor{}
	ingester := document.NewIngester(documentRepo, extractor, encryptor)

	generator := prepsheet.NewGenerator(screeningRepo, screeningTypeRepo, documentRepo, fhirDocRepo, appointmentRepo, patientRepo, nil)
	writer := prepsheet.NewWriter(&factoryWriter{factory: clientFactory}, auditWriter)
	prepsheetSvc := prepsheet.NewService(generator, writer, prepSheetRepo, patientRepo, auditWriter)

	fetcher := &factoryFetcher{factory: clientFactory}
	pipeline := emrsync.NewPipeline(fetcher, patientRepo, conditionRepo, fhirDocRepo, screeningTypeRepo, screeningRepo)

	workerPool := job.NewPool(jobQueue, cfg.JobWorkerCount, time.Duration(cfg.JobPollIntervalMS)*time.Millisecond, logger)
	registerJobHandlers(workerPool, pipeline, prepsheetSvc, patientRepo, appointmentRepo)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workerPool.Run(workerCtx)
	logger.Info().Int("concurrency", cfg.JobWorkerCount).Msg("job worker pool started")

	if !withHTTP {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down worker")
		return nil
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1mb", "10mb"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID", "X-User-Roles", "X-Accessible-Providers"},
	}))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")

	handler := api.NewHandler(jobSvc, prepsheetSvc, screeningRepo, patientRepo, orgRepo, auditWriter)
	handler.RegisterRoutes(apiV1)

	docHandler := api.NewDocumentHandler(ingester, notifier)
	docHandler.RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancelWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// registerJobHandlers wires the three async job types to the domain
// operations that actually do the work (spec §4.5's job-type table).
func registerJobHandlers(
	pool *job.Pool,
	pipeline *emrsync.Pipeline,
	prepsheetSvc *prepsheet.Service,
	patients patient.Repository,
	appts appointment.Repository,
) {
	pool.Register(job.TypeBatchSync, func(ctx context.Context, j *job.Job, progress func(done, total int)) (json.RawMessage, error) {
		var input job.BatchSyncInput
		if err := json.Unmarshal(j.InputPayload, &input); err != nil {
			return nil, fmt.Errorf("batch_sync: decode input: %w", err)
		}
		now := time.Now()
		cutoff := now.Add(-syncLookbackWindow)

		done := 0
		for _, patientID := range input.PatientIDs {
			pat, err := patients.GetByID(ctx, j.TenantID, patientID)
			if err != nil {
				return nil, err
			}
			if pat == nil {
				done++
				progress(done, len(input.PatientIDs))
				continue
			}
			if _, err := pipeline.Sync(ctx, j.TenantID, input.ProviderID, patientID, pat.EpicPatientID, cutoff, now); err != nil {
				return nil, err
			}
			done++
			progress(done, len(input.PatientIDs))
		}
		result, _ := json.Marshal(map[string]int{"synced": done})
		return result, nil
	})

	pool.Register(job.TypePrepSheet, func(ctx context.Context, j *job.Job, progress func(done, total int)) (json.RawMessage, error) {
		var input job.PrepSheetInput
		if err := json.Unmarshal(j.InputPayload, &input); err != nil {
			return nil, fmt.Errorf("prep_sheet: decode input: %w", err)
		}
		now := time.Now()
		var userID uuid.UUID
		if j.RequestedBy != nil {
			userID = *j.RequestedBy
		}

		done := 0
		for _, appointmentID := range input.AppointmentIDs {
			appt, err := appts.GetByID(ctx, j.TenantID, appointmentID)
			if err != nil {
				return nil, err
			}
			if appt == nil || appt.ProviderID == nil {
				done++
				progress(done, len(input.AppointmentIDs))
				continue
			}
			pat, err := patients.GetByID(ctx, j.TenantID, appt.PatientID)
			if err != nil {
				return nil, err
			}
			if pat == nil {
				done++
				progress(done, len(input.AppointmentIDs))
				continue
			}
			appointmentIDCopy := appointmentID
			sheet, err := prepsheetSvc.GenerateAndWriteBack(ctx, j.TenantID, *appt.ProviderID, pat.ID, userID, &appointmentIDCopy, pat.EpicPatientID, "default", input.DryRun, now)
			if err != nil {
				return nil, err
			}
			if err := appts.SetPrepSheet(ctx, j.TenantID, appointmentID, sheet.ID); err != nil {
				return nil, err
			}
			done++
			progress(done, len(input.AppointmentIDs))
		}
		result, _ := json.Marshal(map[string]int{"generated": done})
		return result, nil
	})

	pool.Register(job.TypeSelectiveRefresh, func(ctx context.Context, j *job.Job, progress func(done, total int)) (json.RawMessage, error) {
		var input job.SelectiveRefreshInput
		if err := json.Unmarshal(j.InputPayload, &input); err != nil {
			return nil, fmt.Errorf("selective_refresh: decode input: %w", err)
		}
		count, err := pipeline.RefreshType(ctx, j.TenantID, input.ScreeningTypeID, input.Force, time.Now())
		if err != nil {
			return nil, err
		}
		progress(count, count)
		result, _ := json.Marshal(map[string]int{"refreshed": count})
		return result, nil
	})
}

func decodeEncryptionKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		// Development fallback only; config.Validate rejects an empty key
		// in production.
		return make([]byte, 32), nil
	}
	return hex.DecodeString(hexKey)
}
