package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/linemk/storefront-orders/internal/config"
)

const migrationsTable = "schema_migrations"

// migrateDSN - DSN для запросов плюс таблица, где golang-migrate хранит версию
func migrateDSN(dbCfg config.DatabaseConfig) string {
	return dbCfg.DSN() + "&x-migrations-table=" + migrationsTable
}

func main() {
	var (
		migrationsPathFlag string
		down               bool
	)
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back every migration instead of applying them")
	_ = godotenv.Load()
	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	m, err := migrate.New("file://"+migrationsPath, migrateDSN(cfg.Database))
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("No migrations to apply")
	case err != nil:
		log.Fatalf("migration failed: %v", err)
	default:
		log.Println("Migrations applied successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("failed to read schema version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		log.Fatalf("failed to query tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			log.Fatalf("failed to scan row: %v", err)
		}
		fmt.Println(" -", tableName)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("error reading rows: %v", err)
	}
}
