package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/rates"
	"github.com/noah-isme/backend-pasal/internal/repo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	store := repo.NewStore(pool)
	seedExchangeRates(ctx, store)
	seedClassifications(ctx, store)
	seedShippingRoutes(ctx, store)
	seedGateways(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedExchangeRates(ctx context.Context, store *repo.Store) {
	rows := []currency.ExchangeRate{
		{CountryCode: "US", CurrencyCode: "USD", RateFromUSD: dec("1")},
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: dec("133.20")},
		{CountryCode: "IN", CurrencyCode: "INR", RateFromUSD: dec("83.15")},
		{CountryCode: "BD", CurrencyCode: "BDT", RateFromUSD: dec("119.50")},
		{CountryCode: "GB", CurrencyCode: "GBP", RateFromUSD: dec("0.79")},
	}
	for _, row := range rows {
		if err := store.UpsertExchangeRate(ctx, row); err != nil {
			log.Fatalf("Failed to seed exchange rate %s: %v", row.CountryCode, err)
		}
	}
	log.Printf("Seeded %d exchange rates", len(rows))
}

func seedClassifications(ctx context.Context, store *repo.Store) {
	rows := []classification.Entry{
		{
			Code:                "6204",
			Description:         "Women's suits, dresses and kurtas",
			Category:            "apparel",
			MinimumValuationUSD: decimal.NewNullDecimal(dec("10")),
			RequiresConversion:  true,
			DutyRatePercent:     dec("12"),
			TaxRatePercent:      dec("13"),
			Confidence:          0.95,
		},
		{
			Code:                "6403",
			Description:         "Footwear with leather uppers",
			Category:            "footwear",
			MinimumValuationUSD: decimal.NewNullDecimal(dec("15")),
			RequiresConversion:  true,
			DutyRatePercent:     dec("20"),
			TaxRatePercent:      dec("13"),
			Confidence:          0.92,
		},
		{
			Code:            "4901",
			Description:     "Printed books and brochures",
			Category:        "media",
			DutyRatePercent: dec("0"),
			TaxRatePercent:  dec("0"),
			Confidence:      0.99,
		},
		{
			Code:                "8517",
			Description:         "Smartphones and network equipment",
			Category:            "electronics",
			MinimumValuationUSD: decimal.NewNullDecimal(dec("50")),
			RequiresConversion:  true,
			DutyRatePercent:     dec("5"),
			TaxRatePercent:      dec("13"),
			Confidence:          0.97,
		},
	}
	for _, row := range rows {
		if err := store.UpsertClassification(ctx, row); err != nil {
			log.Fatalf("Failed to seed classification %s: %v", row.Code, err)
		}
	}
	log.Printf("Seeded %d classifications", len(rows))
}

func seedShippingRoutes(ctx context.Context, store *repo.Store) {
	rows := []rates.RouteRates{
		{
			OriginCountry:      "IN",
			DestinationCountry: "NP",
			MerchantAmount:     dec("100"),
			InternationalBase:  dec("500"),
			InternationalPerKg: dec("150.50"),
			DomesticAmount:     dec("80"),
			HandlingAmount:     dec("50"),
		},
		{
			OriginCountry:      "US",
			DestinationCountry: "NP",
			MerchantAmount:     dec("250"),
			InternationalBase:  dec("1800"),
			InternationalPerKg: dec("420"),
			DomesticAmount:     dec("80"),
			HandlingAmount:     dec("75"),
		},
		{
			OriginCountry:      "NP",
			DestinationCountry: "US",
			MerchantAmount:     dec("100"),
			InternationalBase:  dec("500"),
			InternationalPerKg: dec("150.50"),
			DomesticAmount:     dec("80"),
			HandlingAmount:     dec("50"),
		},
	}
	for _, row := range rows {
		if err := store.UpsertRouteRates(ctx, row); err != nil {
			log.Fatalf("Failed to seed route %s->%s: %v", row.OriginCountry, row.DestinationCountry, err)
		}
	}
	log.Printf("Seeded %d shipping routes", len(rows))
}

func seedGateways(ctx context.Context, pool *pgxpool.Pool) {
	type row struct {
		id      string
		name    string
		percent string
		fixed   string
		enabled bool
	}
	rows := []row{
		{"esewa", "eSewa", "2.5", "10", true},
		{"khalti", "Khalti", "3", "5", true},
		{"stripe", "Stripe", "2.9", "0.30", false},
	}
	for _, g := range rows {
		_, err := pool.Exec(ctx, `
			INSERT INTO payment_gateways (id, name, fee_percent, fee_fixed, enabled)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    fee_percent = EXCLUDED.fee_percent,
			    fee_fixed = EXCLUDED.fee_fixed,
			    enabled = EXCLUDED.enabled`,
			g.id, g.name, g.percent, g.fixed, g.enabled)
		if err != nil {
			log.Fatalf("Failed to seed gateway %s: %v", g.id, err)
		}
	}
	log.Printf("Seeded %d payment gateways", len(rows))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
