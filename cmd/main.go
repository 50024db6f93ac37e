package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hoodwatch/internal/handlers"
	"hoodwatch/internal/logger"
	"hoodwatch/internal/modbus"
	"hoodwatch/internal/poller"
	"hoodwatch/internal/repository"
	"hoodwatch/internal/server"
	"hoodwatch/internal/service"
	"hoodwatch/internal/status"
	"hoodwatch/internal/telemetry"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the log level is configurable
	if err := loadConfig(); err != nil {
		fallback := logger.New(logger.InfoLevel)
		fallback.Fatalw("error reading config", "err", err)
	}
	log := logger.New(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	client := modbus.NewClient(viper.GetDuration("modbus.timeout"))
	reader := telemetry.NewReader(client, registerMapFromConfig())
	agg := status.NewAggregator(log, thresholdsFromConfig())

	services := service.NewService(service.Deps{
		Repos:      repos,
		Aggregator: agg,
		Reader:     reader,
		Log:        log,
		PollerCfg: poller.Config{
			Interval: viper.GetDuration("poll.interval"),
			Jitter:   viper.GetDuration("poll.jitter"),
		},
		AuthCfg: service.AuthConfig{
			SigningKey: viper.GetString("auth.signing_key"),
			TokenTTL:   viper.GetDuration("auth.token_ttl"),
		},
	})
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the polling fleet
	if err := services.Fleet.Start(ctx); err != nil {
		log.Fatalw("failed to start fleet", "err", err)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "hoodwatch.db")
		dbPath = "hoodwatch.db"
	}
	return repository.InitDB(dbPath)
}

// registerMapFromConfig reads the deployment-specific register layout.
func registerMapFromConfig() telemetry.RegisterMap {
	return telemetry.RegisterMap{
		UnitID:          byte(viper.GetUint("modbus.unit_id")),
		LampHoursBase:   uint16(viper.GetUint("modbus.registers.lamp_hours_base")),
		LampHoursStride: uint16(viper.GetUint("modbus.registers.lamp_hours_stride")),
		LifeSetpoint:    uint16(viper.GetUint("modbus.registers.life_setpoint")),
		DPS:             uint16(viper.GetUint("modbus.registers.dps")),
		FilterPressure:  uint16(viper.GetUint("modbus.registers.filter_pressure")),
	}
}

// thresholdsFromConfig overlays configured limits on the shipped defaults.
func thresholdsFromConfig() status.Thresholds {
	th := status.DefaultThresholds()
	if v := viper.GetFloat64("thresholds.lamp_warn_fraction"); v > 0 {
		th.LampWarnFraction = v
	}
	if v := viper.GetFloat64("thresholds.pressure_max_pa"); v > 0 {
		th.PressureMaxPa = v
	}
	if v := viper.GetFloat64("thresholds.pressure_warn_fraction"); v > 0 {
		th.PressureWarnFraction = v
	}
	if v := viper.GetFloat64("thresholds.cleaning_warn_fraction"); v > 0 {
		th.CleaningWarnFraction = v
	}
	if v := viper.GetInt("thresholds.timeout_suspend_after"); v > 0 {
		th.TimeoutSuspendAfter = v
	}
	return th
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop background goroutines; Stop waits for in-flight cycles to finish
	cancel()
	services.Fleet.Stop()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
