package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Repository is the Postgres-backed catalog source.
type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	query := `
		SELECT variant_id, product_id, product_name, base_price, image_url
		FROM variants
		WHERE variant_id = $1
	`

	v := &Variant{}
	err := r.db.QueryRowContext(ctx, query, variantID).Scan(
		&v.VariantID,
		&v.ProductID,
		&v.ProductName,
		&v.BasePrice,
		&v.ImageURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	return v, nil
}

func (r *Repository) GetVariants(ctx context.Context, variantIDs []string) ([]Variant, error) {
	query := `
		SELECT variant_id, product_id, product_name, base_price, image_url
		FROM variants
		WHERE variant_id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(variantIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		err := rows.Scan(
			&v.VariantID,
			&v.ProductID,
			&v.ProductName,
			&v.BasePrice,
			&v.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return variants, nil
}

func (r *Repository) ListActiveCampaignItems(ctx context.Context, productIDs []int64, variantIDs []string, at time.Time) ([]domain.SaleCampaignItem, error) {
	query := `
		SELECT id, product_id, COALESCE(variant_id, ''), sale_price,
		       COALESCE(original_price, 0), COALESCE(max_quantity, 0),
		       sold_quantity, campaign_start, campaign_end
		FROM sale_campaign_items
		WHERE (product_id = ANY($1) OR variant_id = ANY($2))
		  AND campaign_start <= $3
		  AND campaign_end > $3
		  AND (max_quantity IS NULL OR sold_quantity < max_quantity)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(productIDs), pq.Array(variantIDs), at)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign items: %w", err)
	}
	defer rows.Close()

	var items []domain.SaleCampaignItem
	for rows.Next() {
		var item domain.SaleCampaignItem
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.VariantID,
			&item.SalePrice,
			&item.OriginalPrice,
			&item.MaxQuantity,
			&item.SoldQuantity,
			&item.CampaignStart,
			&item.CampaignEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (r *Repository) ConsumeCampaignStock(ctx context.Context, campaignItemID int64, quantity int) error {
	query := `
		UPDATE sale_campaign_items
		SET sold_quantity = sold_quantity + $2
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, campaignItemID, quantity); err != nil {
		return fmt.Errorf("failed to consume campaign stock: %w", err)
	}
	return nil
}
