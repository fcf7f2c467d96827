package repository

import (
	"context"

	"freelance-match/internal/database"
	"freelance-match/internal/domain/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FreelancerProfile is the subset of a freelancer the scorer reads.
type FreelancerProfile struct {
	ID                uuid.UUID
	Skills            []matching.FreelancerSkill
	ExperienceYears   *int
	CompletedProjects int
	AverageRating     *decimal.Decimal
}

func (p FreelancerProfile) Signals() matching.Signals {
	return matching.Signals{
		ExperienceYears:   p.ExperienceYears,
		CompletedProjects: p.CompletedProjects,
		AverageRating:     p.AverageRating,
	}
}

type FreelancerRepository interface {
	// ListAvailable returns every available freelancer ordered by id, read
	// from a single snapshot.
	ListAvailable(ctx context.Context) ([]FreelancerProfile, error)
	FreelancerExists(ctx context.Context, freelancerID uuid.UUID) (bool, error)
}

type PostgresFreelancerRepository struct {
	db database.DB
}

func NewPostgresFreelancerRepository(db database.DB) *PostgresFreelancerRepository {
	return &PostgresFreelancerRepository{db: db}
}

// ListAvailable reads the pool and its skills from one snapshot, so a
// freelancer whose availability changes mid-read is either fully listed or
// absent.
func (r *PostgresFreelancerRepository) ListAvailable(ctx context.Context) ([]FreelancerProfile, error) {
	var out []FreelancerProfile
	err := database.WithReadSnapshot(ctx, r.db, func(tx database.Tx) error {
		profiles, index, err := loadProfiles(ctx, tx)
		if err != nil {
			return err
		}
		if len(profiles) > 0 {
			if err := attachSkills(ctx, tx, profiles, index); err != nil {
				return err
			}
		}
		out = profiles
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadProfiles(ctx context.Context, tx database.Tx) ([]FreelancerProfile, map[uuid.UUID]int, error) {
	rows, err := tx.Query(ctx,
		`SELECT f.id, f.experience_years, f.average_rating, COALESCE(c.completed, 0)
		 FROM freelancers f
		 LEFT JOIN (
			SELECT freelancer_id, COUNT(*) AS completed
			FROM freelancer_completed_projects
			GROUP BY freelancer_id
		 ) c ON c.freelancer_id = f.id
		 WHERE f.is_available = TRUE
		 ORDER BY f.id ASC`,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	out := make([]FreelancerProfile, 0)
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			p      FreelancerProfile
			years  *int
			rating decimal.NullDecimal
		)
		if err := rows.Scan(&p.ID, &years, &rating, &p.CompletedProjects); err != nil {
			return nil, nil, err
		}
		if years != nil && *years >= 0 {
			p.ExperienceYears = years
		}
		if rating.Valid {
			v := rating.Decimal
			p.AverageRating = &v
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, index, nil
}

func attachSkills(ctx context.Context, tx database.Tx, profiles []FreelancerProfile, index map[uuid.UUID]int) error {
	rows, err := tx.Query(ctx,
		`SELECT fs.freelancer_id, fs.skill_name, fs.proficiency
		 FROM freelancer_skills fs
		 JOIN freelancers f ON f.id = fs.freelancer_id
		 WHERE f.is_available = TRUE
		 ORDER BY fs.freelancer_id ASC, fs.skill_name ASC`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id          uuid.UUID
			name, level string
		)
		if err := rows.Scan(&id, &name, &level); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		prof, ok := matching.ParseProficiency(level)
		if !ok {
			continue
		}
		profiles[i].Skills = append(profiles[i].Skills, matching.FreelancerSkill{Name: name, Proficiency: prof})
	}
	return rows.Err()
}

func (r *PostgresFreelancerRepository) FreelancerExists(ctx context.Context, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM freelancers WHERE id = $1)`, freelancerID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
