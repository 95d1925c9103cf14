package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core/institution"
)

type institutionRepository struct {
	db *sqlx.DB
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *sqlx.DB) institution.Repository {
	return &institutionRepository{db: db}
}

const institutionColumns = `
	id, name, slug, domain, email, contact_person, phone, address,
	primary_color, is_active, subscription_status, created_at, updated_at`

func (repo *institutionRepository) get(ctx context.Context, query string, args ...interface{}) (institution.Institution, error) {
	var inst institution.Institution
	err := repo.db.GetContext(ctx, &inst, query, args...)
	if err == sql.ErrNoRows {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, errors.Wrap(err, "getting institution")
}

func (repo *institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	query := `
	INSERT INTO institutions (
		name, slug, domain, email, contact_person, phone, address,
		primary_color, is_active, subscription_status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		inst.Name, inst.Slug, inst.Domain, inst.Email, inst.ContactPerson,
		inst.Phone, inst.Address, inst.PrimaryColor, inst.IsActive,
		inst.SubscriptionStatus, inst.CreatedAt, inst.UpdatedAt,
	).Scan(&inst.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return institution.Institution{}, institution.ErrSlugExists
		}
		return institution.Institution{}, errors.Wrap(err, "creating institution")
	}
	return inst, nil
}

func (repo *institutionRepository) QueryAllInstitutions(ctx context.Context) ([]institution.Institution, error) {
	insts := make([]institution.Institution, 0)
	query := `SELECT` + institutionColumns + ` FROM institutions ORDER BY created_at DESC`
	err := repo.db.SelectContext(ctx, &insts, query)
	return insts, errors.Wrap(err, "querying institutions")
}

func (repo *institutionRepository) GetInstitutionByID(ctx context.Context, id int) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE id = $1`, id)
}

func (repo *institutionRepository) GetInstitutionBySlug(ctx context.Context, slug string) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE slug = $1`, slug)
}

func (repo *institutionRepository) GetInstitutionByDomain(ctx context.Context, domain string) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE domain = $1`, domain)
}

func (repo *institutionRepository) GetActiveInstitutionByID(ctx context.Context, id int) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE id = $1 AND is_active`, id)
}

func (repo *institutionRepository) GetActiveInstitutionBySlug(ctx context.Context, slug string) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE slug = $1 AND is_active`, slug)
}

func (repo *institutionRepository) GetActiveInstitutionByDomain(ctx context.Context, domain string) (institution.Institution, error) {
	return repo.get(ctx, `SELECT`+institutionColumns+` FROM institutions WHERE domain = $1 AND is_active`, domain)
}

func (repo *institutionRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM institutions WHERE slug = $1)`, slug)
	return exists, errors.Wrap(err, "checking slug")
}

func (repo *institutionRepository) UpdateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	query := `
	UPDATE institutions SET
		name = $1, email = $2, contact_person = $3, phone = $4,
		address = $5, primary_color = $6, updated_at = $7
	WHERE id = $8`
	_, err := repo.db.ExecContext(ctx, query,
		inst.Name, inst.Email, inst.ContactPerson, inst.Phone,
		inst.Address, inst.PrimaryColor, inst.UpdatedAt, inst.ID,
	)
	if err != nil {
		return institution.Institution{}, errors.Wrap(err, "updating institution")
	}
	return repo.GetInstitutionByID(ctx, inst.ID)
}

// ActivateInstitution is a compare-and-set: the WHERE clause ensures only
// one of two racing activations reports a changed row.
func (repo *institutionRepository) ActivateInstitution(ctx context.Context, id int) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE institutions SET is_active = true, updated_at = now() WHERE id = $1 AND NOT is_active`, id)
	if err != nil {
		return false, errors.Wrap(err, "activating institution")
	}
	n, err := res.RowsAffected()
	return n == 1, errors.Wrap(err, "activating institution")
}

func (repo *institutionRepository) SetSubscriptionStatus(ctx context.Context, id int, to string, from ...string) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE institutions SET subscription_status = $1, updated_at = now()
		 WHERE id = $2 AND subscription_status = ANY($3)`,
		to, id, pq.Array(from))
	if err != nil {
		return false, errors.Wrap(err, "setting subscription status")
	}
	n, err := res.RowsAffected()
	return n == 1, errors.Wrap(err, "setting subscription status")
}

func (repo *institutionRepository) DeleteInstitutionsByID(ctx context.Context, ids ...int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM institutions WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting institutions")
}
