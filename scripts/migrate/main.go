// Command migrate applies the database schema and optionally seeds a first
// admin account. Intended for development and CI databases.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scolaris/emploi-api/pkg/config"
	"github.com/scolaris/emploi-api/pkg/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS classes (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    grade      TEXT NOT NULL DEFAULT '',
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subjects (
    id         TEXT PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS class_subjects (
    id             TEXT PRIMARY KEY,
    class_id       TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    subject_id     TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
    hours_per_week INTEGER NOT NULL CHECK (hours_per_week > 0),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (class_id, subject_id)
);

CREATE TABLE IF NOT EXISTS teachers (
    id              TEXT PRIMARY KEY,
    email           TEXT NOT NULL UNIQUE,
    full_name       TEXT NOT NULL,
    weekly_hour_cap INTEGER NOT NULL DEFAULT 0,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS teacher_subjects (
    id         TEXT PRIMARY KEY,
    teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
    subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (teacher_id, subject_id)
);

CREATE TABLE IF NOT EXISTS rooms (
    id         TEXT PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL,
    role          TEXT NOT NULL,
    teacher_id    TEXT REFERENCES teachers(id),
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS timetable_templates (
    id             TEXT PRIMARY KEY,
    class_id       TEXT NOT NULL REFERENCES classes(id),
    period_start   DATE NOT NULL,
    period_end     DATE NOT NULL,
    effective_from DATE NOT NULL,
    status         TEXT NOT NULL DEFAULT 'DRAFT',
    version        INTEGER NOT NULL,
    generated_by   TEXT NOT NULL DEFAULT '',
    meta           JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (class_id, version)
);

CREATE TABLE IF NOT EXISTS timetable_slots (
    id          TEXT PRIMARY KEY,
    template_id TEXT NOT NULL REFERENCES timetable_templates(id) ON DELETE CASCADE,
    day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 1 AND 6),
    start_time  TEXT NOT NULL,
    end_time    TEXT NOT NULL,
    subject_id  TEXT NOT NULL REFERENCES subjects(id),
    teacher_id  TEXT NOT NULL REFERENCES teachers(id),
    room_id     TEXT REFERENCES rooms(id),
    status      TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_templates_class_status ON timetable_templates (class_id, status, effective_from DESC);
CREATE INDEX IF NOT EXISTS idx_slots_template ON timetable_slots (template_id, day_of_week, start_time);
CREATE INDEX IF NOT EXISTS idx_slots_teacher ON timetable_slots (teacher_id);
`

func main() {
	var (
		adminEmail    = flag.String("admin-email", "", "seed an admin account with this email")
		adminPassword = flag.String("admin-password", "", "password for the seeded admin account")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	log.Println("schema applied")

	if *adminEmail == "" {
		return
	}
	if *adminPassword == "" {
		log.Fatal("admin-password is required when admin-email is set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	const upsert = `
INSERT INTO users (id, email, password_hash, full_name, role, active)
VALUES ($1, $2, $3, 'Administrator', 'ADMIN', TRUE)
ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = NOW()`
	if _, err := db.ExecContext(ctx, upsert, uuid.NewString(), *adminEmail, string(hash)); err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}
	log.Printf("admin account seeded: %s", *adminEmail)
}
