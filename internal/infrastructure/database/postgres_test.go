package database

import (
	"io/fs"
	"testing"

	"github.com/1195214305/xhs-backend/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "db", Port: "5433", User: "xhs", Password: "secret", DBName: "creds", SSLMode: "require",
	}

	want := "host=db port=5433 user=xhs password=secret dbname=creds sslmode=require"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no up migrations embedded")
	}

	body, err := fs.ReadFile(migrations, "migrations/000001_create_credentials.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(body) == 0 {
		t.Error("empty migration")
	}
}
