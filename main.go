package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fishm995/greenhouse-project/automation"
	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/controllers"
	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/stream"
	"github.com/fishm995/greenhouse-project/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	seed := flag.Bool("seed", false, "insert the default users, devices and sensors, then exit")
	noScheduler := flag.Bool("no-scheduler", false, "serve the API without polling sensors or running automation")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.InitLogger(settings.Env); err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer config.SyncLogger()
	logger := config.Log
	if settings.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database and migrate models
	db, err := config.Connect(settings.DatabaseURL)
	if err != nil {
		logger.Fatalw("Failed to connect to database", "err", err)
	}
	if err := controllers.MigrateModels(db); err != nil {
		logger.Fatalw("Failed to migrate database", "err", err)
	}
	if *seed {
		if err := config.Seed(db); err != nil {
			logger.Fatalw("Failed to seed database", "err", err)
		}
		logger.Info("database seeded")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry sinks
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	sinks := telemetry.Multi{metrics}
	if settings.MQTTBroker != "" {
		m, err := telemetry.DialMQTT(ctx, settings.MQTTBroker, settings.MQTTClientID, settings.MQTTTopicPrefix, logger)
		if err != nil {
			logger.Errorw("mqtt disabled", "err", err)
		} else {
			defer m.Close()
			sinks = append(sinks, m)
		}
	}
	if settings.InfluxURL != "" {
		influx := telemetry.NewInflux(settings.InfluxURL, settings.InfluxToken, settings.InfluxOrg, settings.InfluxBucket, logger)
		defer influx.Close()
		sinks = append(sinks, influx)
	}

	driver := hardware.NewGPIODriver(settings.GPIOEnabled, logger)
	defer driver.Close()
	switcher := &automation.Switcher{DB: db, Driver: driver, Sink: sinks}

	camera := stream.NewManager(stream.Config{
		Binary:    settings.FFmpegBin,
		Device:    settings.CameraDevice,
		HLSDir:    settings.HLSDir,
		KillStale: true,
	}, logger)
	defer camera.Stop()
	hub := controllers.NewHub(camera, settings.ViewerTimeout, metrics.SetViewers, logger)
	go hub.RunSweeper(ctx)

	if !*noScheduler {
		scheduler := &automation.Scheduler{
			DB:       db,
			Switcher: switcher,
			Sink:     sinks,
			Sensors:  hardware.NewSensor,
			Interval: settings.SchedulerInterval,
			Location: settings.Location,
			Metrics:  metrics,
			Log:      logger,
		}
		go scheduler.Run(ctx)
	}

	r := controllers.NewRouter(controllers.Options{
		SecretKey:   []byte(settings.SecretKey),
		TokenTTL:    settings.TokenTTL,
		Location:    settings.Location,
		CORSOrigins: settings.CORSOrigins,
		Switcher:    switcher,
		Hub:         hub,
		Metrics:     promhttp.Handler(),
		HLSDir:      settings.HLSDir,
	})

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	go func() {
		logger.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown failed", "err", err)
	}
}
