package repository

import (
	"context"
	"strings"

	"freelance-match/internal/database"

	"github.com/google/uuid"
)

// ProjectSkillRepository reads project data owned by the project service.
type ProjectSkillRepository interface {
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
	FindRequiredSkillNames(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

type PostgresProjectSkillRepository struct {
	db database.DB
}

func NewPostgresProjectSkillRepository(db database.DB) *PostgresProjectSkillRepository {
	return &PostgresProjectSkillRepository{db: db}
}

func (r *PostgresProjectSkillRepository) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, projectID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresProjectSkillRepository) FindRequiredSkillNames(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT skill_name
		 FROM project_skills
		 WHERE project_id = $1
		 ORDER BY skill_name ASC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
