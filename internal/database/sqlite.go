package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/jesses-code-adventures/progress/internal/config"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/utils"
)

//go:embed schema/*.sql
var embedMigrations embed.FS

// timeLayout is fixed width so submitted_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteDB struct {
	conn    *sql.DB
	dialect string
	log     zerolog.Logger
}

// NewDB opens the journal with the configured driver: "sqlite3" for a local
// file, "libsql" for a Turso database.
func NewDB(cfg *config.Config) (*SQLiteDB, error) {
	conn, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	dialect := "sqlite3"
	if cfg.DatabaseDriver == "libsql" {
		dialect = "turso"
	}

	return &SQLiteDB{
		conn:    conn,
		dialect: dialect,
		log:     logger.WithComponent("journal"),
	}, nil
}

func (s *SQLiteDB) Close() error {
	return s.conn.Close()
}

func (s *SQLiteDB) GetConnection() *sql.DB {
	return s.conn
}

func (s *SQLiteDB) prepareGoose() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{s.log})
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Migrate brings the schema up to date.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.conn, "schema"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Reset drops every journal table and recreates the schema.
func (s *SQLiteDB) Reset(ctx context.Context) error {
	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.ResetContext(ctx, s.conn, "schema"); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	if err := goose.UpContext(ctx, s.conn, "schema"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteDB) RecordSubmission(ctx context.Context, summary *models.SubmissionSummary) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (id, project_code, outcome, message, refresh_error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ID,
		summary.ProjectCode,
		string(summary.Outcome),
		summary.Message,
		utils.ToPtrNil(summary.RefreshError),
		summary.SubmittedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	for i, r := range summary.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_results (id, submission_id, position, phase_code, amount, success, message, invoice_number, details)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			models.NewUUID(),
			summary.ID,
			i,
			r.PhaseCode,
			r.Amount.String(),
			boolToInt(r.Success),
			r.Message,
			r.InvoiceNumber,
			utils.ToPtrNil(r.Details),
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice result for phase %s: %w", r.PhaseCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}

	s.log.Debug().
		Str("id", summary.ID).
		Str("project", summary.ProjectCode).
		Int("results", len(summary.Results)).
		Msg("Recorded submission")
	return nil
}

// ListSubmissions returns the newest submissions first. An empty projectCode
// lists every project.
func (s *SQLiteDB) ListSubmissions(ctx context.Context, projectCode string, limit int) ([]*models.SubmissionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, project_code, outcome, message, refresh_error, submitted_at
		FROM submissions
		WHERE ? = '' OR project_code = ?
		ORDER BY submitted_at DESC
		LIMIT ?`,
		projectCode, projectCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.SubmissionSummary
	for rows.Next() {
		var (
			summary      models.SubmissionSummary
			outcome      string
			refreshError sql.NullString
			submittedAt  string
		)
		if err := rows.Scan(&summary.ID, &summary.ProjectCode, &outcome, &summary.Message, &refreshError, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		summary.Outcome = models.SubmissionOutcome(outcome)
		summary.RefreshError = refreshError.String
		// RFC3339Nano also reads rows written before the fixed-width layout.
		summary.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid submitted_at %q: %w", submittedAt, err)
		}
		out = append(out, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	for _, summary := range out {
		results, err := s.listResults(ctx, summary.ID)
		if err != nil {
			return nil, err
		}
		summary.Results = results
	}

	return out, nil
}

func (s *SQLiteDB) listResults(ctx context.Context, submissionID string) ([]models.InvoiceResult, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT phase_code, amount, success, message, invoice_number, details
		FROM invoice_results
		WHERE submission_id = ?
		ORDER BY position`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice results: %w", err)
	}
	defer rows.Close()

	var out []models.InvoiceResult
	for rows.Next() {
		var (
			r             models.InvoiceResult
			amount        string
			success       int
			invoiceNumber sql.NullString
			details       sql.NullString
		)
		if err := rows.Scan(&r.PhaseCode, &amount, &success, &r.Message, &invoiceNumber, &details); err != nil {
			return nil, fmt.Errorf("failed to scan invoice result: %w", err)
		}
		r.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		r.Success = success != 0
		if invoiceNumber.Valid {
			r.InvoiceNumber = utils.ToPtr(invoiceNumber.String)
		}
		r.Details = details.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// gooseLogger sends migration output through zerolog instead of stdout.
type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debug().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal().Msgf(format, v...)
}
