package main

import (
	"context"
	"log"
	"time"

	"bookingflow/internal/app"
	"bookingflow/internal/config"
	"bookingflow/internal/domain/booking"
	"bookingflow/internal/domain/catalog"
	"bookingflow/internal/logging"
	"bookingflow/internal/middleware"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if cfg.RedisURL != "" {
		log.Println("REDIS_URL ignored while seeding")
		cfg.RedisURL = ""
	}

	a, err := app.New(cfg, logging.Discard())
	if err != nil {
		log.Fatal("startup failed:", err)
	}
	defer func() { _ = a.Close() }()

	log.Println("Cleaning old data...")
	for _, table := range []string{"booking_sagas", "appointments", "bookings", "products"} {
		if err := a.DB.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("cleanup %s failed: %v", table, err)
		}
	}

	// ================== PRODUCTS ==================
	log.Println("Creating products...")
	products := []catalog.Product{
		{Name: "Garden tent", Category: "venue", Price: 15000, Available: true},
		{Name: "Fairy lights", Category: "decor", Price: 2500, Available: true},
		{Name: "Three-tier cake", Category: "catering", Price: 6000, Available: true},
		{Name: "Photo booth", Category: "entertainment", Price: 8000, Available: true},
		{Name: "String quartet", Category: "music", Price: 20000, Available: false},
	}
	for i := range products {
		if err := a.Catalog.Create(ctx, &products[i]); err != nil {
			log.Fatalf("create product %s failed: %v", products[i].Name, err)
		}
	}

	// ================== BOOKINGS ==================
	log.Println("Creating bookings...")
	svc := a.Bookings
	submissions := []booking.SubmitInput{
		{
			ClientName:     "Alice Ramos",
			ClientEmail:    "alice@example.com",
			ClientContact:  "+63 917 000 0001",
			EventType:      "Wedding",
			EventDate:      "2025-12-05",
			BranchLocation: "Maddela, Quirino",
			GuestCount:     150,
			Products: []booking.SelectedProduct{
				{ProductID: products[0].ID, Name: products[0].Name, Quantity: 1, Price: products[0].Price},
				{ProductID: products[2].ID, Name: products[2].Name, Quantity: 1, Price: products[2].Price},
			},
			Subtotal:   21000,
			TotalPrice: 21000,
		},
		{
			ClientName:     "Ben Castillo",
			ClientEmail:    "ben@example.com",
			EventType:      "Birthday",
			EventDate:      "2025-11-22",
			Venue:          "Function Room B",
			BranchLocation: "Cabarroguis, Quirino",
			GuestCount:     40,
			Theme:          "Superheroes",
			Products: []booking.SelectedProduct{
				{ProductID: products[3].ID, Name: products[3].Name, Quantity: 1, Price: products[3].Price},
			},
			Subtotal:   8000,
			Discount:   800,
			TotalPrice: 7200,
		},
		{
			ClientName:     "Cara Dizon",
			ClientEmail:    "cara@example.com",
			EventType:      "Debut",
			EventDate:      "2026-01-17",
			BranchLocation: "Maddela, Quirino",
			GuestCount:     80,
		},
		{
			ClientName:     "Dan Villanueva",
			EventType:      "Corporate",
			EventDate:      "2026-02-03",
			BranchLocation: "Cabarroguis, Quirino",
			GuestCount:     60,
		},
	}

	ids := make([]string, 0, len(submissions))
	for _, in := range submissions {
		b, err := svc.Submit(ctx, in)
		if err != nil {
			log.Fatalf("submit %s failed: %v", in.ClientName, err)
		}
		ids = append(ids, b.ID)
	}

	approvals := []booking.ApprovalDetails{
		{Date: "2025-11-28", MeetingLocation: "Maddela branch office", Description: "Menu tasting"},
		{Date: "2025-11-15", MeetingLocation: "Cabarroguis branch office"},
		{Date: "2026-01-05", MeetingLocation: "Online call", Description: "Program walkthrough"},
	}
	for i, d := range approvals {
		res, err := svc.Approve(ctx, ids[i], d)
		if err != nil {
			log.Fatalf("approve %s failed: %v", ids[i], err)
		}
		log.Printf("Approved %s as %s", ids[i], res.Booking.Reference())
	}

	if _, err := svc.Finish(ctx, ids[1]); err != nil {
		log.Fatalf("finish %s failed: %v", ids[1], err)
	}
	if _, err := svc.RequestCancellation(ctx, ids[2], "Venue change", "Family moved the debut to Manila"); err != nil {
		log.Fatalf("request cancellation %s failed: %v", ids[2], err)
	}

	log.Printf("Seed completed: products=%d bookings=%d", len(products), len(ids))

	if a.Tokens != nil {
		token, err := a.Tokens.GenerateToken("seed-admin", "admin@example.com", middleware.RoleAdmin)
		if err != nil {
			log.Fatal("token generation failed:", err)
		}
		log.Printf("Admin token (valid %s): %s", 24*time.Hour, token)
	}
}
