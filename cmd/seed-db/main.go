// Command seed-db populates a fresh database with demo catalog data:
// products, platform vouchers, referral codes, and one API key per role.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/pricing"
	"github.com/bazarko/marketplace-api/internal/handler"
	"github.com/bazarko/marketplace-api/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	SellerID string          `json:"seller_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Brand    string          `json:"brand"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}

const (
	upsertProductSQL = `INSERT INTO products (id, seller_id, name, category, brand, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			seller_id = EXCLUDED.seller_id,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			updated_at = now()`

	upsertVoucherSQL = `INSERT INTO vouchers
			(code, name, description, type, value, min_purchase, max_discount, usage_limit, is_active, start_date, end_date, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit,
			is_active = TRUE,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			updated_at = now()`

	upsertReferralSQL = `INSERT INTO referral_codes (code, user_id, reward_amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			reward_amount = EXCLUDED.reward_amount,
			is_active = TRUE,
			updated_at = now()`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id, role, name, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			user_id = EXCLUDED.user_id,
			role = EXCLUDED.role,
			name = EXCLUDED.name,
			active = TRUE`
)

func main() {
	var (
		databaseURL  string
		productsFile string
		pepper       string
		customerKey  string
		sellerKey    string
		adminKey     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MKT_API_KEY_PEPPER env)")
	flag.StringVar(&customerKey, "customer-key", "", "API key to seed for the demo customer (or MKT_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&sellerKey, "seller-key", "", "API key to seed for the demo seller (or MKT_SEED_SELLER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "API key to seed for the demo admin (or MKT_SEED_ADMIN_KEY env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("MKT_API_KEY_PEPPER")
	}
	if customerKey == "" {
		customerKey = os.Getenv("MKT_SEED_CUSTOMER_KEY")
	}
	if sellerKey == "" {
		sellerKey = os.Getenv("MKT_SEED_SELLER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("MKT_SEED_ADMIN_KEY")
	}
	if customerKey == "" || sellerKey == "" || adminKey == "" {
		slog.Error("all three API keys are required: set --customer-key, --seller-key, --admin-key or the MKT_SEED_*_KEY envs")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	keys := map[actor.Role]string{
		actor.RoleCustomer: customerKey,
		actor.RoleSeller:   sellerKey,
		actor.RoleAdmin:    adminKey,
	}

	if err := run(ctx, databaseURL, productsFile, pepper, keys); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, pepper string, keys map[actor.Role]string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedVouchers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}

	if err := seedReferralCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed referral codes")
	}

	if err := seedAPIKeys(ctx, pool, pepper, keys); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.SellerID, p.Name, p.Category, p.Brand, p.Price, p.Stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type seedVoucher struct {
	code        string
	name        string
	description string
	voucherType pricing.DiscountType
	value       string
	minPurchase string
	maxDiscount string
	usageLimit  int
	sellerID    string
}

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo vouchers")

	vouchers := []seedVoucher{
		{
			code:        "SAVE10",
			name:        "Save 10%",
			description: "10% off your order, up to 25.00",
			voucherType: pricing.DiscountPercentage,
			value:       "10",
			maxDiscount: "25",
		},
		{
			code:        "WELCOME15",
			name:        "Welcome",
			description: "15.00 off orders of 50.00 or more",
			voucherType: pricing.DiscountFixedAmount,
			value:       "15",
			minPurchase: "50",
			usageLimit:  1000,
		},
		{
			code:        "FREESHIP",
			name:        "Free Shipping",
			description: "Shipping fee waived",
			voucherType: pricing.DiscountFreeShipping,
			value:       "0",
		},
	}

	start := time.Now().UTC()
	end := start.AddDate(1, 0, 0)

	for _, v := range vouchers {
		value, err := decimal.NewFromString(v.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for voucher %s", v.code)
		}

		minPurchase, err := optionalDecimal(v.minPurchase)
		if err != nil {
			return errors.Wrapf(err, "parse min purchase for voucher %s", v.code)
		}
		maxDiscount, err := optionalDecimal(v.maxDiscount)
		if err != nil {
			return errors.Wrapf(err, "parse max discount for voucher %s", v.code)
		}

		var usageLimit *int
		if v.usageLimit > 0 {
			usageLimit = &v.usageLimit
		}

		if _, err := pool.Exec(ctx, upsertVoucherSQL,
			v.code, v.name, v.description, string(v.voucherType),
			value, minPurchase, maxDiscount, usageLimit, start, end, v.sellerID,
		); err != nil {
			return errors.Wrapf(err, "upsert voucher %s", v.code)
		}

		slog.Info("upserted voucher", slog.String("code", v.code), slog.String("description", v.description))
	}

	return nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func seedReferralCodes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo referral codes")

	referrals := []struct {
		code   string
		userID string
		reward string
	}{
		{code: "FRIEND5", userID: "customer-1", reward: "5.00"},
		{code: "FRIEND10", userID: "customer-2", reward: "10.00"},
	}

	for _, r := range referrals {
		reward, err := decimal.NewFromString(r.reward)
		if err != nil {
			return errors.Wrapf(err, "parse reward for referral %s", r.code)
		}

		if _, err := pool.Exec(ctx, upsertReferralSQL, r.code, r.userID, reward); err != nil {
			return errors.Wrapf(err, "upsert referral code %s", r.code)
		}

		slog.Info("upserted referral code", slog.String("code", r.code), slog.String("user_id", r.userID))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, pepper string, keys map[actor.Role]string) error {
	slog.Info("seeding API keys")

	// Hashing goes through the same code path the server authenticates with.
	sec := handler.NewSecurity(nil, []byte(pepper))

	accounts := []struct {
		role   actor.Role
		id     string
		userID string
		name   string
	}{
		{role: actor.RoleCustomer, id: "key-customer", userID: "customer-1", name: "Demo customer key"},
		{role: actor.RoleSeller, id: "key-seller", userID: "seller-1", name: "Demo seller key"},
		{role: actor.RoleAdmin, id: "key-admin", userID: "admin-1", name: "Demo admin key"},
	}

	for _, a := range accounts {
		if _, err := pool.Exec(ctx, upsertAPIKeySQL,
			a.id, sec.HashKey(keys[a.role]), a.userID, string(a.role), a.name,
		); err != nil {
			return errors.Wrapf(err, "upsert api key %s", a.id)
		}

		slog.Info("upserted API key", slog.String("id", a.id), slog.String("role", string(a.role)))
	}

	return nil
}
