package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/confkit/confkit/internal/api"
	"github.com/confkit/confkit/internal/config"
	"github.com/confkit/confkit/internal/db"
	"github.com/confkit/confkit/internal/schedule"
)

func main() {
	ingestPath := pflag.String("ingest", "", "schedule XML file to parse and load into the store (\"-\" for stdin)")
	serve := pflag.Bool("serve", false, "serve the query API after any ingest")
	addr := pflag.String("addr", "", "listen address for --serve (overrides CONFKIT_SERVER_ADDRESS)")
	pflag.Parse()

	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if *ingestPath == "" && !*serve {
		pflag.Usage()
		os.Exit(2)
	}

	engine, err := db.Open(db.Options{
		Path:     cfg.StorePath,
		SeedPath: cfg.SeedStorePath,
		Readers:  cfg.Readers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() { _ = engine.Close() }()

	if *ingestPath != "" {
		ingest(engine, *ingestPath)
	}

	if *serve {
		listen := cfg.ServerAddress
		if *addr != "" {
			listen = *addr
		}
		run(engine, listen)
	}
}

func ingest(engine *db.Engine, path string) {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open schedule file")
		}
		defer f.Close()
		in = f
	}

	sched, err := schedule.Parse(in)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule parse failed")
	}

	events := 0
	for _, day := range sched.Days {
		events += len(day.Events)
	}
	log.Info().
		Str("conference", sched.Conference.Title).
		Int("days", len(sched.Days)).
		Int("events", events).
		Msg("schedule parsed")

	// Bulk population at ingest time is the one sanctioned use of the
	// synchronous write path.
	if err := engine.ReplaceScheduleSync(sched); err != nil {
		log.Fatal().Err(err).Msg("failed to store schedule")
	}
	log.Info().Msg("schedule stored")
}

func run(engine *db.Engine, addr string) {
	r := gin.Default()
	r.Use(cors.Default())

	group := r.Group("/api")
	api.RegisterQueryRoutes(group, engine)

	log.Info().Str("addr", addr).Msg("serving query API")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
