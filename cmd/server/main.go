package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apptax "github.com/erp/taxconnector/internal/application/tax"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/avatax"
	"github.com/erp/taxconnector/internal/infrastructure/config"
	"github.com/erp/taxconnector/internal/infrastructure/logger"
	"github.com/erp/taxconnector/internal/infrastructure/persistence"
	"github.com/erp/taxconnector/internal/interfaces/http/handler"
	"github.com/erp/taxconnector/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.FromConfig(&cfg.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		return err
	}

	settings := tax.Settings{
		CompanyCode:                cfg.Tax.CompanyCode,
		Disabled:                   cfg.Tax.Disabled,
		DisableDocumentRecording:   cfg.Tax.DisableDocumentRecording,
		AutoGenerateCustomerCode:   cfg.Tax.AutoGenerateCustomerCode,
		ForceAddressValidation:     cfg.Tax.ForceAddressValidation,
		AddressValidationDelegated: cfg.Tax.AddressValidationDelegated,
		AddressValidationCountries: cfg.Tax.AddressValidationCountries,
		UseUPC:                     cfg.Tax.UseUPC,
		LineLevelGranularity:       cfg.Tax.LineLevelGranularity,
	}

	calculator, err := avatax.NewCalculator(avatax.Config{
		AccountNumber: cfg.Avatax.AccountNumber,
		LicenseKey:    cfg.Avatax.LicenseKey,
		ServiceURL:    cfg.Avatax.ServiceURL,
		Protocol:      avatax.Protocol(cfg.Avatax.Protocol),
		Timeout:       cfg.Avatax.Timeout,
		Verbose:       cfg.Avatax.Verbose,
	}, log.Named("avatax"))
	if err != nil {
		if !settings.Disabled {
			return err
		}
		// Integration is off; serve documents with local estimates only.
		log.Warn("tax service not configured, running with calculation disabled", zap.Error(err))
		calculator = nil
	}

	documents := persistence.NewGormDocumentRepository(db.DB)
	customers := persistence.NewGormCustomerRepository(db.DB)
	rates := persistence.NewGormTaxRateRepository(db.DB)
	status := persistence.NewGormCredentialStatusRepository(db.DB)

	resolver := apptax.NewRateResolver(rates, log.Named("rates"))
	compute := apptax.NewComputeService(documents, customers, resolver, calculator, settings, log.Named("compute"))
	documentService := apptax.NewDocumentService(documents, customers, compute, calculator, status, settings, log.Named("documents"))

	engine := router.New(router.Config{
		Documents: handler.NewTaxDocumentHandler(documentService),
		Health:    handler.NewHealthHandler(db),
		Logger:    log.Named("http"),
		Env:       cfg.App.Env,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
