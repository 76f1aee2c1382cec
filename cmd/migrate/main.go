package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/repository/postgres"
)

func main() {
	dir := flag.String("dir", "migrations", "Directory holding *.up.sql files")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	dbCfg := config.DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "opsapi"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// First, connect to the postgres database to create the target database if needed
	adminCfg := dbCfg
	adminCfg.DBName = "postgres"
	adminDB, err := sql.Open("postgres", postgres.DSN(adminCfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to postgres database: %v\n", err)
		os.Exit(1)
	}
	defer adminDB.Close()

	var exists bool
	err = adminDB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbCfg.DBName,
	).Scan(&exists)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check database existence: %v\n", err)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("Database '%s' does not exist. Creating...\n", dbCfg.DBName)
		if _, err := adminDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbCfg.DBName)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Database '%s' created successfully.\n", dbCfg.DBName)
	}

	db, err := postgres.NewConnection(dbCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := postgres.RunMigrations(context.Background(), db, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed after %d file(s): %v\n", len(applied), err)
		os.Exit(1)
	}

	for _, name := range applied {
		fmt.Printf("  applied %s\n", name)
	}
	fmt.Println("Migration completed successfully!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
