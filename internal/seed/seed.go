package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type productSeed struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
}

// Admin is the operator account created by Apply. Empty fields skip it.
type Admin struct {
	Email    string
	Password string
}

var products = []productSeed{
	{
		SKU:         "SKU-DEMO-TSHIRT",
		Name:        "Demo T-Shirt",
		Description: "Soft cotton tee for demo purposes",
		PriceCents:  1999,
		Stock:       50,
	},
	{
		SKU:         "SKU-DEMO-MUG",
		Name:        "Demo Mug",
		Description: "Ceramic mug with demo logo",
		PriceCents:  1299,
		Stock:       25,
	},
	{
		SKU:         "SKU-DEMO-LAMP",
		Name:        "Desk Lamp",
		Description: "Crosses the free shipping threshold on its own",
		PriceCents:  11900,
		Stock:       3,
	},
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool, admin Admin) error {
	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	if err := upsertAdmin(ctx, pool, admin); err != nil {
		return fmt.Errorf("upsert admin %s: %w", admin.Email, err)
	}
	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (sku, name, description, price_cents, stock)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock
`
	_, err := pool.Exec(ctx, q, p.SKU, p.Name, p.Description, p.PriceCents, p.Stock)
	return err
}

func upsertAdmin(ctx context.Context, pool *pgxpool.Pool, admin Admin) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO customers (email, password_hash, name, role, email_verified)
VALUES ($1, $2, 'Administrator', 'admin', TRUE)
ON CONFLICT ((lower(email))) DO UPDATE
SET password_hash = EXCLUDED.password_hash,
    role = 'admin'
`
	_, err = pool.Exec(ctx, q, strings.ToLower(admin.Email), string(hash))
	return err
}
