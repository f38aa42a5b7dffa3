package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"vendorhub/utils"
	"vendorhub/utils/logging"
	"vendorhub/vendorhub/auth"
	"vendorhub/vendorhub/llm"
	"vendorhub/vendorhub/migrations"
	"vendorhub/vendorhub/services"
	"vendorhub/vendorhub/storage"

	env "github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type vendorHubEnv struct {
	DatabaseUri string
	ShareDir    string
	JwtSecret   string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	PublicHostname string

	Assistant assistantEnv
}

type assistantEnv struct {
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL"`
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

/**
 * ==========================================================================
 * ==== All variables that are used by vendorhub must be loaded here.    ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() vendorHubEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return value
	}

	cfg := vendorHubEnv{
		DatabaseUri: requiredEnv("DATABASE_URI"),
		ShareDir:    requiredEnv("SHARE_DIR"),
		JwtSecret:   requiredEnv("JWT_SECRET"),

		AdminUsername: requiredEnv("ADMIN_USERNAME"),
		AdminEmail:    requiredEnv("ADMIN_MAIL"),
		AdminPassword: requiredEnv("ADMIN_PASSWORD"),

		PublicHostname: utils.OptionalEnv("PUBLIC_HOSTNAME"),
	}

	if err := env.Parse(&cfg.Assistant); err != nil {
		log.Fatalf("error parsing assistant env variables: %v", err)
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return cfg
}

func (cfg *vendorHubEnv) postgresDsn() string {
	parts, err := url.Parse(cfg.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func (cfg *vendorHubEnv) llmClient() llm.Client {
	if cfg.Assistant.OpenAIKey == "" {
		slog.Info("OPENAI_API_KEY not set, assistant endpoints are disabled")
		return nil
	}
	return llm.NewOpenAIClient(llm.Config{APIKey: cfg.Assistant.OpenAIKey, Model: cfg.Assistant.OpenAIModel})
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	if err := migrations.Run(db); err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	cfg := loadEnv()

	err := os.MkdirAll(filepath.Join(cfg.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.ShareDir, "logs/vendorhub.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.ShareDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	logging.Init(logFile, "vendorhub")

	db := initDb(cfg.postgresDsn())

	sharedStorage := storage.NewSharedDisk(cfg.ShareDir)

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:        []byte(cfg.JwtSecret),
			AdminUsername: cfg.AdminUsername,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		},
	)
	if err != nil {
		log.Fatalf("error creating basic identity provider: %v", err)
	}

	vendorHub := services.NewVendorHub(db, sharedStorage, cfg.llmClient(), identityProvider)

	allowedOrigins := []string{"*"}
	if cfg.PublicHostname != "" {
		allowedOrigins = []string{cfg.PublicHostname}
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", vendorHub.Routes())
	r.Handle("/metrics", promhttp.Handler())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
