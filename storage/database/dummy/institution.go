package dummydb

import (
	"context"
	"sort"

	"github.com/talenttune/talenttune/core/institution"
)

type institutionRepository struct {
	db *institutionTable
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *DB) institution.Repository {
	return &institutionRepository{db: db.institution}
}

func (repo *institutionRepository) query() []institution.Institution {
	insts := make([]institution.Institution, 0, len(repo.db.table))
	for _, inst := range repo.db.table {
		insts = append(insts, *inst)
	}
	sort.Slice(insts, func(i, j int) bool { return insts[i].ID < insts[j].ID })
	return insts
}

func (repo *institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Slug == inst.Slug {
			return institution.Institution{}, institution.ErrSlugExists
		}
	}

	repo.db.pkCount++
	inst.ID = repo.db.pkCount
	repo.db.table[inst.ID] = &inst
	return inst, nil
}

func (repo *institutionRepository) QueryAllInstitutions(ctx context.Context) ([]institution.Institution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *institutionRepository) GetInstitutionByID(ctx context.Context, id int) (institution.Institution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if inst, ok := repo.db.table[id]; ok {
		return *inst, nil
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) GetInstitutionBySlug(ctx context.Context, slug string) (institution.Institution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inst := range repo.query() {
		if inst.Slug == slug {
			return inst, nil
		}
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) GetInstitutionByDomain(ctx context.Context, domain string) (institution.Institution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inst := range repo.query() {
		if inst.Domain.Valid && inst.Domain.String == domain {
			return inst, nil
		}
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) GetActiveInstitutionByID(ctx context.Context, id int) (institution.Institution, error) {
	inst, err := repo.GetInstitutionByID(ctx, id)
	if err != nil {
		return institution.Institution{}, err
	}
	if !inst.IsActive {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo *institutionRepository) GetActiveInstitutionBySlug(ctx context.Context, slug string) (institution.Institution, error) {
	inst, err := repo.GetInstitutionBySlug(ctx, slug)
	if err != nil {
		return institution.Institution{}, err
	}
	if !inst.IsActive {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo *institutionRepository) GetActiveInstitutionByDomain(ctx context.Context, domain string) (institution.Institution, error) {
	inst, err := repo.GetInstitutionByDomain(ctx, domain)
	if err != nil {
		return institution.Institution{}, err
	}
	if !inst.IsActive {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo *institutionRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inst := range repo.query() {
		if inst.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *institutionRepository) UpdateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[inst.ID]
	if !ok {
		return institution.Institution{}, institution.ErrNotFound
	}
	existing.Name = inst.Name
	existing.Email = inst.Email
	existing.ContactPerson = inst.ContactPerson
	existing.Phone = inst.Phone
	existing.Address = inst.Address
	existing.PrimaryColor = inst.PrimaryColor
	existing.UpdatedAt = inst.UpdatedAt
	return *existing, nil
}

func (repo *institutionRepository) ActivateInstitution(ctx context.Context, id int) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	inst, ok := repo.db.table[id]
	if !ok || inst.IsActive {
		return false, nil
	}
	inst.IsActive = true
	return true, nil
}

func (repo *institutionRepository) SetSubscriptionStatus(ctx context.Context, id int, to string, from ...string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	inst, ok := repo.db.table[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if inst.SubscriptionStatus == status {
			inst.SubscriptionStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (repo *institutionRepository) DeleteInstitutionsByID(ctx context.Context, ids ...int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
