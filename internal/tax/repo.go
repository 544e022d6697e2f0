package tax

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGRepository persists tax rules in Postgres, one row per region.
type PGRepository struct {
	Pool *pgxpool.Pool
}

// FindByRegion loads a region's rule. The boolean reports existence so the
// caller decides whether absence is an error.
func (r *PGRepository) FindByRegion(ctx context.Context, region string) (Rule, bool, error) {
	var (
		rule Rule
		rate string
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT region, rate::text, updated_at FROM tax_rules WHERE region = $1`,
		strings.ToUpper(strings.TrimSpace(region)),
	).Scan(&rule.Region, &rate, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, false, nil
		}
		return Rule{}, false, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Rule{}, false, err
	}
	rule.Rate = parsed
	return rule, true, nil
}

// Save upserts the rule for its region.
func (r *PGRepository) Save(ctx context.Context, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO tax_rules (region, rate, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (region) DO UPDATE SET rate = $2, updated_at = now()`,
		strings.ToUpper(strings.TrimSpace(rule.Region)), rule.Rate.String())
	return err
}
