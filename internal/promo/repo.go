package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGCampaignRepository stores campaigns in Postgres.
type PGCampaignRepository struct {
	Pool *pgxpool.Pool
}

// FindActiveForProduct returns campaigns scoped to the template plus wildcard
// campaigns. Window and usage eligibility is re-checked in code so the
// resolver owns the rule, but obviously dead rows are filtered here.
func (r *PGCampaignRepository) FindActiveForProduct(ctx context.Context, productTemplateID string) ([]Campaign, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, name, product_template_id, discount_type, discount_value::text,
		        valid_from, valid_to, usage_limit, usage_count
		   FROM campaigns
		  WHERE product_template_id IN ($1, '*')
		    AND valid_to >= now() - interval '1 day'`,
		productTemplateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var (
			c     Campaign
			kind  string
			value string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.ProductTemplateID, &kind, &value,
			&c.ValidFrom, &c.ValidTo, &c.UsageLimit, &c.UsageCount); err != nil {
			return nil, err
		}
		c.DiscountType = DiscountType(kind)
		if c.DiscountValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("promo: campaign %s discount value: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save inserts or updates a campaign after creation-time validation.
func (r *PGCampaignRepository) Save(ctx context.Context, c Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, product_template_id, discount_type, discount_value,
		                        valid_from, valid_to, usage_limit, usage_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		    SET name = $2, product_template_id = $3, discount_type = $4, discount_value = $5,
		        valid_from = $6, valid_to = $7, usage_limit = $8`,
		c.ID, c.Name, c.ProductTemplateID, string(c.DiscountType), c.DiscountValue.String(),
		c.ValidFrom, c.ValidTo, c.UsageLimit, c.UsageCount)
	return err
}

// ErrDuplicateCode reports a unique-constraint conflict on promo code insert.
var ErrDuplicateCode = errors.New("promo: code already exists")

// PGCodeRepository stores promo codes in Postgres.
type PGCodeRepository struct {
	Pool *pgxpool.Pool
}

// FindByCode loads a code by its normalised form.
func (r *PGCodeRepository) FindByCode(ctx context.Context, code string) (Code, bool, error) {
	var (
		c     Code
		kind  string
		value string
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, code, discount_type, discount_value::text, valid_from, valid_to,
		        usage_limit, usage_count, created_by
		   FROM promo_codes WHERE code = $1`,
		NormalizeCode(code),
	).Scan(&c.ID, &c.Code, &kind, &value, &c.ValidFrom, &c.ValidTo,
		&c.UsageLimit, &c.UsageCount, &c.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Code{}, false, nil
		}
		return Code{}, false, err
	}
	c.DiscountType = DiscountType(kind)
	if c.DiscountValue, err = decimal.NewFromString(value); err != nil {
		return Code{}, false, fmt.Errorf("promo: code %s discount value: %w", c.Code, err)
	}
	return c, true, nil
}

// Save inserts a new promo code, surfacing duplicates as ErrDuplicateCode.
func (r *PGCodeRepository) Save(ctx context.Context, c Code) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO promo_codes (id, code, discount_type, discount_value,
		                          valid_from, valid_to, usage_limit, usage_count, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, NormalizeCode(c.Code), string(c.DiscountType), c.DiscountValue.String(),
		c.ValidFrom, c.ValidTo, c.UsageLimit, c.UsageCount, c.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// Redeem performs the atomic increment-with-limit-check. The WHERE clause and
// the increment execute as one statement under row-level locking, so
// usage_count can never pass usage_limit regardless of concurrent callers.
func (r *PGCodeRepository) Redeem(ctx context.Context, code string) (bool, error) {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE promo_codes
		    SET usage_count = usage_count + 1
		  WHERE code = $1
		    AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		NormalizeCode(code))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
