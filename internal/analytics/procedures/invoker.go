// Package procedures calls named set-returning SQL functions in the aggregation
// store and returns their rows as untyped records.
package procedures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/models"
)

var (
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrInvalidIdentifier    = errors.New("invalid identifier")
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Invoker runs one aggregation procedure.
type Invoker interface {
	Invoke(ctx context.Context, dataset, procedure string, params []Param) (*models.ToolResult, error)
}

// PostgresInvoker invokes procedures with named notation:
//
//	SELECT * FROM "dataset"."procedure"(start_date => $1::date, ...)
type PostgresInvoker struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

func NewPostgresInvoker(db *sql.DB, timeout time.Duration, log logger.Logger) *PostgresInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresInvoker{
		db:      db,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "procedure-invoker"}),
	}
}

// BuildCall renders the statement and positional arguments for a procedure call.
func BuildCall(dataset, procedure string, params []Param) (string, []interface{}, error) {
	if !identifierPattern.MatchString(dataset) {
		return "", nil, fmt.Errorf("%w: dataset %q", ErrInvalidIdentifier, dataset)
	}
	if !identifierPattern.MatchString(procedure) {
		return "", nil, fmt.Errorf("%w: procedure %q", ErrInvalidIdentifier, procedure)
	}

	parts := make([]string, 0, len(params))
	args := make([]interface{}, 0, len(params))
	for i, p := range params {
		if !identifierPattern.MatchString(p.Name) {
			return "", nil, fmt.Errorf("%w: parameter %q", ErrInvalidIdentifier, p.Name)
		}
		switch p.Type {
		case TypeDate, TypeText, TypeInteger, TypeBoolean:
		default:
			return "", nil, fmt.Errorf("parameter %s: unsupported type %q", p.Name, p.Type)
		}
		parts = append(parts, fmt.Sprintf("%s => $%d::%s", p.Name, i+1, p.Type))
		args = append(args, p.Value)
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"."%s"(%s)`, dataset, procedure, strings.Join(parts, ", "))
	return query, args, nil
}

// Invoke executes the procedure under the configured wall-clock timeout.
func (p *PostgresInvoker) Invoke(ctx context.Context, dataset, procedure string, params []Param) (*models.ToolResult, error) {
	query, args, err := BuildCall(dataset, procedure, params)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	p.logger.Debug("invoking procedure", map[string]interface{}{
		"dataset":   dataset,
		"procedure": procedure,
		"params":    paramNames(params),
	})

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	rows, err := p.query(callCtx, query, args)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			metrics.ProcedureDuration.WithLabelValues(procedure, "timeout").Observe(elapsed.Seconds())
			p.logger.Warn("procedure timed out", map[string]interface{}{
				"procedure": procedure,
				"timeout":   p.timeout.String(),
			})
			return nil, apperrors.NewQueryTimeoutError(procedure, fmt.Errorf("%w: %v", ErrQueryTimeout, err))
		}
		metrics.ProcedureDuration.WithLabelValues(procedure, "error").Observe(elapsed.Seconds())
		p.logger.Error("procedure failed", map[string]interface{}{
			"procedure": procedure,
			"error":     err,
		})
		return nil, apperrors.NewQueryExecutionFailedError(procedure, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err))
	}

	metrics.ProcedureDuration.WithLabelValues(procedure, "ok").Observe(elapsed.Seconds())
	p.logger.Debug("procedure completed", map[string]interface{}{
		"procedure": procedure,
		"rowCount":  len(rows),
		"elapsedMs": elapsed.Milliseconds(),
	})
	return models.NewToolResult(rows, elapsed), nil
}

func (p *PostgresInvoker) query(ctx context.Context, query string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			record[col] = normalizeValue(values[i])
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeValue converts driver values into JSON-friendly ones. NUMERIC
// arrives from lib/pq as []byte.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		s := string(val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(models.DateLayout)
		}
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func paramNames(params []Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.String()
	}
	return out
}
