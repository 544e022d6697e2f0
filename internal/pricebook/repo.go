package pricebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/money"
)

// Repository is the storage contract consumed by the quote orchestrator and
// the admin service.
type Repository interface {
	FindActiveByProductTemplateID(ctx context.Context, productTemplateID string) (PriceBook, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (PriceBook, bool, error)
	SaveDraft(ctx context.Context, book PriceBook) error
	// Publish transitions the draft to Active, assigns the next version and
	// archives the previously active book for the template in one
	// transaction.
	Publish(ctx context.Context, id uuid.UUID) (PriceBook, error)
}

// ErrNotDraft reports a publish attempt against a non-draft book.
var ErrNotDraft = errors.New("pricebook: only draft books can be published")

// premiumsPayload is the JSONB shape for option premiums: option id -> amount
// string. The currency lives on the book row.
type premiumsPayload map[string]string

// PGRepository persists price books in Postgres with premiums as JSONB.
type PGRepository struct {
	Pool *pgxpool.Pool
}

func (r *PGRepository) FindActiveByProductTemplateID(ctx context.Context, productTemplateID string) (PriceBook, bool, error) {
	return r.findOne(ctx,
		`SELECT id, product_template_id, version, base_price::text, currency, option_premiums, status, created_at, published_at
		   FROM price_books
		  WHERE product_template_id = $1 AND status = 'ACTIVE'`,
		productTemplateID)
}

func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (PriceBook, bool, error) {
	return r.findOne(ctx,
		`SELECT id, product_template_id, version, base_price::text, currency, option_premiums, status, created_at, published_at
		   FROM price_books
		  WHERE id = $1`,
		id)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (PriceBook, bool, error) {
	row := r.Pool.QueryRow(ctx, query, arg)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceBook{}, false, nil
		}
		return PriceBook{}, false, err
	}
	return book, true, nil
}

// SaveDraft inserts a new draft book. Version stays zero until publish.
func (r *PGRepository) SaveDraft(ctx context.Context, book PriceBook) error {
	premiums := make(premiumsPayload, len(book.OptionPremiums))
	for id, premium := range book.OptionPremiums {
		premiums[id] = premium.Amount.String()
	}
	encoded, err := json.Marshal(premiums)
	if err != nil {
		return fmt.Errorf("pricebook: encode premiums: %w", err)
	}
	_, err = r.Pool.Exec(ctx,
		`INSERT INTO price_books (id, product_template_id, version, base_price, currency, option_premiums, status, created_at)
		 VALUES ($1, $2, 0, $3, $4, $5, 'DRAFT', now())`,
		book.ID, book.ProductTemplateID, book.BasePrice.Amount.String(), book.Currency(), encoded)
	return err
}

// Publish runs the archive-then-activate swap inside one transaction so no
// window exists with two active books for a template.
func (r *PGRepository) Publish(ctx context.Context, id uuid.UUID) (PriceBook, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PriceBook{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		templateID string
		status     string
	)
	err = tx.QueryRow(ctx,
		`SELECT product_template_id, status FROM price_books WHERE id = $1 FOR UPDATE`,
		id).Scan(&templateID, &status)
	if err != nil {
		return PriceBook{}, err
	}
	if Status(status) != StatusDraft {
		return PriceBook{}, ErrNotDraft
	}

	_, err = tx.Exec(ctx,
		`UPDATE price_books SET status = 'ARCHIVED'
		  WHERE product_template_id = $1 AND status = 'ACTIVE'`,
		templateID)
	if err != nil {
		return PriceBook{}, err
	}

	row := tx.QueryRow(ctx,
		`UPDATE price_books
		    SET status = 'ACTIVE',
		        version = 1 + COALESCE((SELECT MAX(version) FROM price_books WHERE product_template_id = $2), 0),
		        published_at = now()
		  WHERE id = $1
		  RETURNING id, product_template_id, version, base_price::text, currency, option_premiums, status, created_at, published_at`,
		id, templateID)
	book, err := scanBook(row)
	if err != nil {
		return PriceBook{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PriceBook{}, err
	}
	return book, nil
}

func scanBook(row pgx.Row) (PriceBook, error) {
	var (
		book        PriceBook
		base        string
		currency    string
		rawPremiums []byte
		status      string
		publishedAt *time.Time
	)
	err := row.Scan(&book.ID, &book.ProductTemplateID, &book.Version, &base, &currency,
		&rawPremiums, &status, &book.CreatedAt, &publishedAt)
	if err != nil {
		return PriceBook{}, err
	}
	amount, err := decimal.NewFromString(base)
	if err != nil {
		return PriceBook{}, fmt.Errorf("pricebook: base price: %w", err)
	}
	book.BasePrice = money.New(amount, currency)
	book.Status = Status(status)
	book.PublishedAt = publishedAt

	var premiums premiumsPayload
	if len(rawPremiums) > 0 {
		if err := json.Unmarshal(rawPremiums, &premiums); err != nil {
			return PriceBook{}, fmt.Errorf("pricebook: decode premiums: %w", err)
		}
	}
	book.OptionPremiums = make(map[string]money.Money, len(premiums))
	for id, value := range premiums {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return PriceBook{}, fmt.Errorf("pricebook: premium %q: %w", id, err)
		}
		book.OptionPremiums[id] = money.New(parsed, currency)
	}
	return book, nil
}
