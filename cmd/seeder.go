package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"enrollments", "payments", "courses", "users"} {
				if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		learners := []struct {
			Email string
			Name  string
		}{
			{"ayu@mail.com", "Ayu"},
			{"bima@mail.com", "Bima"},
		}

		for _, l := range learners {
			var exists int
			row := db.Raw("SELECT 1 FROM users WHERE email = ?", l.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("user already exists:", l.Email)
				continue
			}

			if err := db.Exec("INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())", l.Email, l.Name, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", l.Email, err)
			}
			fmt.Println("Seeded user:", l.Email)
		}

		courses := []struct {
			Title      string
			Desc       string
			PriceCents int64
			Status     string
		}{
			{"Go for Backend Engineers", "Build production HTTP services in Go", 49900, "published"},
			{"PostgreSQL Deep Dive", "Indexes, transactions and query planning", 39900, "published"},
			{"Intro to Programming", "A free starter course", 0, "published"},
			{"Distributed Systems", "Not yet ready for sale", 59900, "draft"},
		}

		for _, c := range courses {
			var exists int
			row := db.Raw("SELECT 1 FROM courses WHERE title = ?", c.Title).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("course already exists:", c.Title)
				continue
			}

			if err := db.Exec("INSERT INTO courses (title, description, price_cents, status, enrolled_students, created_at, updated_at) VALUES (?, ?, ?, ?, 0, now(), now())", c.Title, c.Desc, c.PriceCents, c.Status).Error; err != nil {
				log.Fatalf("failed to insert course %s: %v", c.Title, err)
			}
			fmt.Printf("Seeded course: %s (%d cents)\n", c.Title, c.PriceCents)
		}

		fmt.Println("Seed data loaded successfully")
	},
}
