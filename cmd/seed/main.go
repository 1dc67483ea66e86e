// seed inserts development accounts for local testing, one per role.
// Idempotent: an email that is already registered is skipped.
package main

import (
	"context"
	"fmt"
	"log"

	"identity-core/internal/config"
	"identity-core/internal/db"
	identityservice "identity-core/internal/identity/service"
	"identity-core/internal/server"
	userdomain "identity-core/internal/user/domain"
)

const devPassword = "Dev-Passw0rd!2024"

var devAccounts = []identityservice.RegisterInput{
	{Role: userdomain.RoleClient, Email: "client@example.com", Name: "Dev Client"},
	{Role: userdomain.RoleEmployee, Email: "employee@example.com", Name: "Dev Employee", SubRole: "manager"},
	{Role: userdomain.RoleAdmin, Email: "admin@example.com", Name: "Dev Admin", SubRole: "super_admin"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	srv, err := server.New(server.Deps{Config: cfg, DB: conn})
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	for _, in := range devAccounts {
		existing, err := srv.Users.FindByEmail(ctx, in.Email)
		if err != nil {
			log.Fatalf("seed check %s: %v", in.Email, err)
		}
		if existing != nil {
			log.Printf("%s already exists (%s). Skipping.", in.Email, existing.Status)
			continue
		}
		in.Password = devPassword
		u, err := srv.Registration.Start(ctx, in)
		if err != nil {
			log.Fatalf("register %s: %v", in.Email, err)
		}
		if _, err := srv.Registration.Activate(ctx, u.Role, u.ID); err != nil {
			log.Fatalf("activate %s: %v", in.Email, err)
		}
		fmt.Printf("%-8s login: %s / %s\n", u.Role, in.Email, devPassword)
	}
	log.Println("Seed completed successfully.")
}
