package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/triplog/internal/domain"
)

// DirectoryRepo is a read-only view of the organization tables.
// The tables themselves are maintained by the admin CRUD.
type DirectoryRepo interface {
	// Member returns a member with their sub-unit, base and capabilities.
	// Returns domain.ErrNotFound if the member does not exist or was removed.
	Member(ctx context.Context, id uuid.UUID) (domain.Member, error)

	// VehicleHome returns the sub-unit and base a vehicle belongs to.
	// Returns domain.ErrNotFound if the vehicle does not exist or was removed.
	VehicleHome(ctx context.Context, vehicleID uuid.UUID) (domain.VehicleHome, error)
}

// pgDirectoryRepo is the Postgres implementation of DirectoryRepo.
type pgDirectoryRepo struct {
	db db
}

// NewDirectoryRepo constructs a DirectoryRepo backed by the provided db connection.
func NewDirectoryRepo(db db) DirectoryRepo {
	return &pgDirectoryRepo{db: db}
}

func (r *pgDirectoryRepo) Member(ctx context.Context, id uuid.UUID) (domain.Member, error) {
	const q = `
		SELECT m.id, m.sub_unit_id, s.base_id, m.capabilities
		FROM members m
		JOIN sub_units s ON s.id = m.sub_unit_id
		WHERE m.id = @id AND m.deleted_at IS NULL`

	var (
		memberID, unitID, baseID pgtype.UUID
		caps                     []string
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&memberID, &unitID, &baseID, &caps)
	if err != nil {
		return domain.Member{}, fmt.Errorf("repo.DirectoryRepo.Member: %w", notFound(err))
	}

	m := domain.Member{
		ID:        uuid.UUID(memberID.Bytes),
		SubUnitID: uuid.UUID(unitID.Bytes),
		BaseID:    uuid.UUID(baseID.Bytes),
	}
	for _, c := range caps {
		m.Capabilities = append(m.Capabilities, domain.Capability(c))
	}
	return m, nil
}

func (r *pgDirectoryRepo) VehicleHome(ctx context.Context, vehicleID uuid.UUID) (domain.VehicleHome, error) {
	const q = `
		SELECT v.id, v.sub_unit_id, s.base_id
		FROM vehicles v
		JOIN sub_units s ON s.id = v.sub_unit_id
		WHERE v.id = @id AND v.deleted_at IS NULL`

	var vID, unitID, baseID pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": vehicleID}).Scan(&vID, &unitID, &baseID)
	if err != nil {
		return domain.VehicleHome{}, fmt.Errorf("repo.DirectoryRepo.VehicleHome: %w", notFound(err))
	}
	return domain.VehicleHome{
		VehicleID: uuid.UUID(vID.Bytes),
		SubUnitID: uuid.UUID(unitID.Bytes),
		BaseID:    uuid.UUID(baseID.Bytes),
	}, nil
}
