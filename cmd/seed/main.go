package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aerzsu/dental-clinic-sub000/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedProviders(context.Background(), pool, 6); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedStaff(context.Background(), pool, 4); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []string{
		"Consultation",
		"Oral Prophylaxis (Cleaning)",
		"Tooth Extraction",
		"Dental Filling",
		"Root Canal Treatment",
		"Teeth Whitening",
		"Braces Adjustment",
		"Denture Fitting",
		"Wisdom Tooth Surgery",
	}

	log.Printf("seeding %d services", len(services))

	for _, name := range services {
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, name, active, created_at, updated_at)
			VALUES ($1, $2, TRUE, now(), now())
		`, uuid.New(), name)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d providers", count)

	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO providers (id, name, active, created_at, updated_at)
			VALUES ($1, $2, TRUE, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.Name())
		if err != nil {
			return err
		}
	}
	return nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d staff", count)

	roles := []string{"frontdesk", "frontdesk", "admin", "frontdesk"}
	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO staff (id, name, email, role, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, now(), now())
		`, uuid.New(), gofakeit.Name(), gofakeit.Email(), roles[i%len(roles)])
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, first_name, last_name, email, phone, address, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone(), gofakeit.Address().Address)
		if err != nil {
			return err
		}

		if (i+1)%100 == 0 {
			log.Printf("seeded %d/%d patients", i+1, count)
		}
	}
	return nil
}
