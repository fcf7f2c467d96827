package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"freelance-match/internal/database"
	"freelance-match/internal/domain/match"
	"freelance-match/internal/domain/matching"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrMatchScoreNotFound = errors.New("match score not found")

// MatchScoreRepository is the store of persisted recommendations. It never
// triggers computation.
type MatchScoreRepository interface {
	// ReplaceForProject swaps the project's whole snapshot for scores in one
	// transaction. An empty scores slice clears the project.
	ReplaceForProject(ctx context.Context, projectID uuid.UUID, scores []match.MatchScore) error

	FindTopN(ctx context.Context, projectID uuid.UUID, limit int) ([]match.MatchScore, error)
	FindAboveMinScore(ctx context.Context, projectID uuid.UUID, minScore decimal.Decimal) ([]match.MatchScore, error)
	FindTopNAboveMinScore(ctx context.Context, projectID uuid.UUID, limit int, minScore decimal.Decimal) ([]match.MatchScore, error)
	FindOne(ctx context.Context, projectID, freelancerID uuid.UUID) (match.MatchScore, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
}

type PostgresMatchScoreRepository struct {
	db database.DB
}

func NewPostgresMatchScoreRepository(db database.DB) *PostgresMatchScoreRepository {
	return &PostgresMatchScoreRepository{db: db}
}

const matchScoreColumns = `project_id, freelancer_id, total_score, skill_score, experience_score, rank, reasons, computed_at`

func (r *PostgresMatchScoreRepository) ReplaceForProject(ctx context.Context, projectID uuid.UUID, scores []match.MatchScore) error {
	if projectID == uuid.Nil {
		return errors.New("nil project id")
	}

	query, args, err := buildInsert(projectID, scores)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, r.db, func(tx database.Tx) error {
		// Serializes writers of the same project across processes; released at commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, projectID); err != nil {
			return fmt.Errorf("lock project: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM match_scores WHERE project_id = $1`, projectID); err != nil {
			return fmt.Errorf("delete match scores: %w", err)
		}
		if query == "" {
			return nil
		}
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert match scores: %w", err)
		}
		if n != int64(len(scores)) {
			return fmt.Errorf("insert match scores: wrote %d of %d rows", n, len(scores))
		}
		return nil
	})
}

func buildInsert(projectID uuid.UUID, scores []match.MatchScore) (string, []any, error) {
	if len(scores) == 0 {
		return "", nil, nil
	}

	const cols = 8
	var b strings.Builder
	b.WriteString(`INSERT INTO match_scores (` + matchScoreColumns + `) VALUES `)
	args := make([]any, 0, len(scores)*cols)
	for i, s := range scores {
		if s.ProjectID != projectID {
			return "", nil, fmt.Errorf("score for project %s in snapshot of %s", s.ProjectID, projectID)
		}
		reasons, err := json.Marshal(toReasonsRecord(s.Reasons))
		if err != nil {
			return "", nil, fmt.Errorf("encode reasons: %w", err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * cols
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args,
			s.ProjectID,
			s.FreelancerID,
			s.TotalScore,
			s.SkillScore,
			s.ExperienceScore,
			s.Rank,
			reasons,
			s.ComputedAt.UTC(),
		)
	}
	return b.String(), args, nil
}

func (r *PostgresMatchScoreRepository) FindTopN(ctx context.Context, projectID uuid.UUID, limit int) ([]match.MatchScore, error) {
	return r.list(ctx,
		`SELECT `+matchScoreColumns+`
		 FROM match_scores
		 WHERE project_id = $1 AND rank <= $2
		 ORDER BY rank ASC`,
		projectID, limit,
	)
}

func (r *PostgresMatchScoreRepository) FindAboveMinScore(ctx context.Context, projectID uuid.UUID, minScore decimal.Decimal) ([]match.MatchScore, error) {
	return r.list(ctx,
		`SELECT `+matchScoreColumns+`
		 FROM match_scores
		 WHERE project_id = $1 AND total_score >= $2
		 ORDER BY total_score DESC, rank ASC`,
		projectID, minScore,
	)
}

func (r *PostgresMatchScoreRepository) FindTopNAboveMinScore(ctx context.Context, projectID uuid.UUID, limit int, minScore decimal.Decimal) ([]match.MatchScore, error) {
	return r.list(ctx,
		`SELECT `+matchScoreColumns+`
		 FROM match_scores
		 WHERE project_id = $1 AND rank <= $2 AND total_score >= $3
		 ORDER BY rank ASC`,
		projectID, limit, minScore,
	)
}

func (r *PostgresMatchScoreRepository) FindOne(ctx context.Context, projectID, freelancerID uuid.UUID) (match.MatchScore, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+matchScoreColumns+`
		 FROM match_scores
		 WHERE project_id = $1 AND freelancer_id = $2`,
		projectID, freelancerID,
	)
	ms, err := scanMatchScore(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return match.MatchScore{}, ErrMatchScoreNotFound
		}
		return match.MatchScore{}, err
	}
	return ms, nil
}

func (r *PostgresMatchScoreRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var n int
	row := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM match_scores WHERE project_id = $1`, projectID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresMatchScoreRepository) list(ctx context.Context, query string, args ...any) ([]match.MatchScore, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.MatchScore, 0)
	for rows.Next() {
		ms, err := scanMatchScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanMatchScore(row database.Row) (match.MatchScore, error) {
	var (
		ms         match.MatchScore
		reasons    []byte
		computedAt time.Time
	)
	if err := row.Scan(
		&ms.ProjectID,
		&ms.FreelancerID,
		&ms.TotalScore,
		&ms.SkillScore,
		&ms.ExperienceScore,
		&ms.Rank,
		&reasons,
		&computedAt,
	); err != nil {
		return match.MatchScore{}, err
	}
	ms.ComputedAt = computedAt.UTC()

	if len(reasons) > 0 {
		var rec reasonsRecord
		if err := json.Unmarshal(reasons, &rec); err != nil {
			return match.MatchScore{}, fmt.Errorf("decode reasons: %w", err)
		}
		ms.Reasons = rec.toReasons()
	}
	return ms, nil
}

// reasonsRecord is the jsonb layout of the reasons column.
type reasonsRecord struct {
	MatchedSkills     []string         `json:"matched_skills"`
	SkillScore        decimal.Decimal  `json:"skill_score"`
	ExperienceYears   *int             `json:"experience_years"`
	ExperienceScore   decimal.Decimal  `json:"experience_score"`
	CompletedProjects int              `json:"completed_projects"`
	AverageRating     *decimal.Decimal `json:"average_rating"`
}

func toReasonsRecord(r matching.Reasons) reasonsRecord {
	skills := r.MatchedSkills
	if skills == nil {
		skills = []string{}
	}
	return reasonsRecord{
		MatchedSkills:     skills,
		SkillScore:        r.SkillScore,
		ExperienceYears:   r.ExperienceYears,
		ExperienceScore:   r.ExperienceScore,
		CompletedProjects: r.CompletedProjects,
		AverageRating:     r.AverageRating,
	}
}

func (rec reasonsRecord) toReasons() matching.Reasons {
	return matching.Reasons{
		MatchedSkills:     rec.MatchedSkills,
		SkillScore:        rec.SkillScore,
		ExperienceYears:   rec.ExperienceYears,
		ExperienceScore:   rec.ExperienceScore,
		CompletedProjects: rec.CompletedProjects,
		AverageRating:     rec.AverageRating,
	}
}
