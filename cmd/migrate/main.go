package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"tickio/internal/config"
	"tickio/internal/database/migrations"
	"tickio/internal/logger"
	"tickio/internal/models"
)

// Migration CLI: `migrate -down` rolls the schema back, `migrate -seed`
// loads a small demo inventory after migrating up.
func main() {
	down := flag.Bool("down", false, "roll back all migrations")
	seed := flag.Bool("seed", false, "seed demo ticket types after migrating")
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host,
		cfg.Database.Port, cfg.Database.Database, cfg.Database.SSLMode)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer sqldb.Close()
	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	appLogger := logger.NewTestLogger()

	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: *dir, AutoMigrate: true}, appLogger)
	defer runner.Close()

	if *down {
		if err := runner.Down(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Schema rolled back")
		return
	}

	if err := runner.Up(); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("Schema migrated")

	if *seed {
		if err := seedData(context.Background(), bunDB); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Demo inventory seeded")
	}
	os.Exit(0)
}

func seedData(ctx context.Context, db *bun.DB) error {
	ticketTypes := []models.TicketType{
		{
			ID:       "tt-general",
			EventID:  "event-summerfest",
			Name:     "General Admission",
			Price:    decimal.NewFromFloat(45.00),
			Capacity: 500,
			Active:   true,
		},
		{
			ID:       "tt-vip",
			EventID:  "event-summerfest",
			Name:     "VIP",
			Price:    decimal.NewFromFloat(150.00),
			Capacity: 50,
			Active:   true,
		},
		{
			ID:       "tt-early",
			EventID:  "event-summerfest",
			Name:     "Early Bird",
			Price:    decimal.NewFromFloat(30.00),
			Capacity: 100,
			Active:   false,
		},
	}

	_, err := db.NewInsert().
		Model(&ticketTypes).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}
