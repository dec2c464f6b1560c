package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"election-backend/api"
	"election-backend/encryption"
	"election-backend/models"
	"election-backend/service"
	"election-backend/storage"
)

// Config is the server configuration file. The system encryption key is
// deliberately absent: it comes from the environment only and never
// lives in a file next to the database.
type Config struct {
	ListenAddr      string `toml:"listen_addr"`
	DataDir         string `toml:"data_dir"`
	RosterFile      string `toml:"roster_file"`
	DeanToken       string `toml:"dean_token"`
	CommissionToken string `toml:"commission_token"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		DataDir:    "election_data",
	}
}

func loadConfig(path string) Config {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file %s not found, using defaults", path)
		} else {
			log.Fatalf("Failed to parse config file %s: %v", path, err)
		}
	}
	return cfg
}

func main() {
	configPath := flag.String("config", "server.toml", "path to TOML config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config file)")
	dataDir := flag.String("data", "", "data directory (overrides config file)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	escrow, err := encryption.NewPasswordEscrow(os.Getenv("SYSTEM_ENCRYPTION_KEY"))
	if err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	// Degraded mode: if the durable store cannot be opened, fall back
	// to the volatile in-memory store so the election can at least be
	// rehearsed. Everything is lost on restart, so shout about it.
	var store storage.Store
	boltStore, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		log.Printf("WARNING: failed to open durable store (%v); running on volatile in-memory storage", err)
		store = storage.NewMemoryStore()
	} else {
		store = boltStore
	}
	defer store.Close()

	svc := service.NewVotingService(store, escrow)

	if cfg.RosterFile != "" {
		// Seed only a fresh database. Reseeding zeroes the live counters,
		// so across a restart the stored candidates win.
		existing, err := store.Candidates(storage.CandidateFilter{})
		if err != nil {
			log.Fatalf("Failed to read candidates: %v", err)
		}
		if len(existing) == 0 {
			roster, err := models.LoadRoster(cfg.RosterFile)
			if err != nil {
				log.Fatalf("Failed to load roster: %v", err)
			}
			count, err := svc.SeedFromRoster(roster)
			if err != nil {
				log.Fatalf("Failed to seed candidates: %v", err)
			}
			log.Printf("Seeded %d candidates from %s", count, cfg.RosterFile)
		}
	}

	auth := api.NewAuthenticator(cfg.DeanToken, cfg.CommissionToken)
	server := api.NewServer(svc, auth)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting election API on %s...", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
