package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tokoledger/api/internal/config"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Owner email address")
	password := flag.String("password", "", "Owner password")
	name := flag.String("name", "", "Owner full name")
	shopName := flag.String("shop", "", "Shop name")
	withProducts := flag.Bool("products", true, "Seed sample products")
	flag.Parse()

	// Fall back to environment variables, then defaults
	*email = strings.ToLower(firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "owner@tokoledger.dev"))
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Shop Owner")
	*shopName = firstNonEmpty(*shopName, os.Getenv("SEED_SHOP"), "Toko Ledger")
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction: shop, owner and products or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	shopID, err := seedShop(ctx, tx, *shopName)
	if err != nil {
		log.Fatalf("Failed to seed shop: %v", err)
	}

	userID, err := seedOwner(ctx, tx, shopID, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to seed owner: %v", err)
	}

	if *withProducts {
		if err := seedProducts(ctx, tx, shopID); err != nil {
			log.Fatalf("Failed to seed products: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Shop ID: %s", shopID)
	log.Printf("Owner ID: %s", userID)
}

// seedShop creates the shop if one with the same name doesn't exist.
func seedShop(ctx context.Context, tx pgx.Tx, name string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM shops WHERE name = $1 LIMIT 1`, name).Scan(&existingID)
	if err == nil {
		log.Printf("Shop '%s' already exists (ID: %s), skipping", name, existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check shop: %w", err)
	}

	shop, err := database.New(tx).CreateShop(ctx, database.CreateShopParams{
		Name:           name,
		Address:        "Jl. Contoh No. 1",
		CurrencySymbol: "৳",
		AutoTax:        true,
		VatPercent:     numeric("5"),
		TaxPercent:     numeric("0"),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert shop: %w", err)
	}

	log.Printf("Created shop '%s' (ID: %s)", name, shop.ID)
	return shop.ID, nil
}

// seedOwner creates the owner user if it doesn't exist.
func seedOwner(ctx context.Context, tx pgx.Tx, shopID uuid.UUID, email, password, fullName string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %s), skipping", email, existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := database.New(tx).CreateUser(ctx, database.CreateUserParams{
		ShopID:         shopID,
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           enum.UserRoleOwner,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("Created owner user '%s' (ID: %s)", email, user.ID)
	return user.ID, nil
}

type sampleVariation struct {
	name  string
	price string
	stock int32
}

type sampleProduct struct {
	name       string
	price      string
	cost       string
	stock      int32
	variations []sampleVariation
}

var sampleProducts = []sampleProduct{
	{name: "Phone Charger", price: "100", cost: "60", stock: 25},
	{name: "Screen Protector", price: "50", cost: "20", stock: 40},
	{name: "Phone Case", price: "150", cost: "80", variations: []sampleVariation{
		{name: "Black", price: "150", stock: 10},
		{name: "Clear", price: "120", stock: 12},
	}},
	{name: "Replacement Battery", price: "300", cost: "180", stock: 8},
}

// seedProducts inserts the sample catalog unless the shop already has products.
func seedProducts(ctx context.Context, tx pgx.Tx, shopID uuid.UUID) error {
	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM products WHERE shop_id = $1`, shopID).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		log.Printf("Shop already has %d products, skipping", count)
		return nil
	}

	q := database.New(tx)
	for _, p := range sampleProducts {
		product, err := q.CreateProduct(ctx, database.CreateProductParams{
			ShopID: shopID,
			Name:   p.name,
			Price:  numeric(p.price),
			Cost:   numeric(p.cost),
			Stock:  p.stock,
		})
		if err != nil {
			return fmt.Errorf("insert product %q: %w", p.name, err)
		}
		for _, v := range p.variations {
			if _, err := q.CreateProductVariation(ctx, database.CreateProductVariationParams{
				ProductID: product.ID,
				Name:      v.name,
				Price:     numeric(v.price),
				Cost:      numeric(p.cost),
				Stock:     v.stock,
			}); err != nil {
				return fmt.Errorf("insert variation %q: %w", v.name, err)
			}
		}
		log.Printf("Created product '%s' (ID: %s)", p.name, product.ID)
	}
	return nil
}

func numeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		log.Fatalf("invalid numeric %q: %v", s, err)
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
