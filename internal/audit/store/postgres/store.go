package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"gatekeeper/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id                   UUID PRIMARY KEY,
	timestamp            TIMESTAMPTZ NOT NULL,
	user_id              VARCHAR(255) NOT NULL,
	user_role            VARCHAR(50) NOT NULL,
	department           VARCHAR(255),
	action               VARCHAR(255) NOT NULL,
	endpoint             VARCHAR(500) NOT NULL,
	method               VARCHAR(10) NOT NULL,
	request_size         BIGINT NOT NULL DEFAULT 0,
	response_size        BIGINT NOT NULL DEFAULT 0,
	response_time_ms     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status_code          INTEGER NOT NULL,
	pii_detected         BOOLEAN NOT NULL DEFAULT FALSE,
	pii_types_found      TEXT[] NOT NULL DEFAULT '{}',
	pii_count            INTEGER NOT NULL DEFAULT 0,
	redaction_applied    BOOLEAN NOT NULL DEFAULT FALSE,
	rate_limit_remaining INTEGER,
	ip_address           VARCHAR(45),
	user_agent           VARCHAR(500),
	request_id           VARCHAR(64),
	violation            VARCHAR(50),
	violation_details    VARCHAR(1000),
	outcome              VARCHAR(16) NOT NULL,
	reason               VARCHAR(50)
);
CREATE INDEX IF NOT EXISTS ix_audit_logs_user_id_timestamp ON audit_logs (user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS ix_audit_logs_user_role_timestamp ON audit_logs (user_role, timestamp);
CREATE INDEX IF NOT EXISTS ix_audit_logs_department_timestamp ON audit_logs (department, timestamp);
`

const selectColumns = `
	id, timestamp, user_id, user_role, department, action, endpoint, method,
	request_size, response_size, response_time_ms, status_code,
	pii_detected, pii_types_found, pii_count, redaction_applied, rate_limit_remaining,
	ip_address, user_agent, request_id, violation, violation_details, outcome, reason`

// Store persists audit records in the audit_logs table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_logs (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	var remaining sql.NullInt64
	if rec.RateLimitRemaining != nil {
		remaining = sql.NullInt64{Int64: int64(*rec.RateLimitRemaining), Valid: true}
	}
	types := rec.PIITypes
	if types == nil {
		types = []string{}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC(),
		rec.UserID,
		rec.Role,
		nullString(rec.Department),
		rec.Action,
		rec.Endpoint,
		rec.Method,
		rec.RequestSize,
		rec.ResponseSize,
		rec.ResponseTimeMS,
		rec.StatusCode,
		rec.PIIDetected,
		pq.Array(types),
		rec.PIICount,
		rec.RedactionApplied,
		remaining,
		nullString(rec.IPAddress),
		nullString(rec.UserAgent),
		nullString(rec.RequestID),
		nullString(rec.Violation),
		nullString(rec.ViolationDetails),
		rec.Outcome,
		nullString(rec.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter audit.Filter, limit int) ([]audit.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Department != "" {
		add("department = $%d", filter.Department)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= $%d", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("timestamp <= $%d", filter.Until.UTC())
	}

	query := `SELECT ` + selectColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *Store) UsageByDepartment(ctx context.Context, since, until time.Time) ([]audit.DepartmentUsage, error) {
	query := `
		SELECT COALESCE(department, 'unknown'),
		       COUNT(id),
		       COUNT(DISTINCT user_id),
		       COALESCE(SUM(pii_count), 0),
		       COUNT(violation),
		       COALESCE(AVG(response_time_ms), 0)
		FROM audit_logs
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY COALESCE(department, 'unknown')
		ORDER BY 1
	`
	rows, err := s.db.QueryContext(ctx, query, since.UTC(), until.UTC())
	if err != nil {
		return nil, fmt.Errorf("aggregate audit usage: %w", err)
	}
	defer rows.Close()

	var usage []audit.DepartmentUsage
	for rows.Next() {
		var u audit.DepartmentUsage
		if err := rows.Scan(&u.Department, &u.TotalRequests, &u.UniqueUsers, &u.TotalPIIDetected, &u.TotalViolations, &u.AvgResponseTimeMS); err != nil {
			return nil, fmt.Errorf("scan audit usage: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit usage: %w", err)
	}
	return usage, nil
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record
	for rows.Next() {
		var (
			rec        audit.Record
			types      pq.StringArray
			remaining  sql.NullInt64
			department sql.NullString
			ip         sql.NullString
			userAgent  sql.NullString
			requestID  sql.NullString
			violation  sql.NullString
			details    sql.NullString
			reason     sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.UserID,
			&rec.Role,
			&department,
			&rec.Action,
			&rec.Endpoint,
			&rec.Method,
			&rec.RequestSize,
			&rec.ResponseSize,
			&rec.ResponseTimeMS,
			&rec.StatusCode,
			&rec.PIIDetected,
			&types,
			&rec.PIICount,
			&rec.RedactionApplied,
			&remaining,
			&ip,
			&userAgent,
			&requestID,
			&violation,
			&details,
			&rec.Outcome,
			&reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.PIITypes = []string(types)
		if remaining.Valid {
			v := int(remaining.Int64)
			rec.RateLimitRemaining = &v
		}
		rec.Department = department.String
		rec.IPAddress = ip.String
		rec.UserAgent = userAgent.String
		rec.RequestID = requestID.String
		rec.Violation = violation.String
		rec.ViolationDetails = details.String
		rec.Reason = reason.String
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
