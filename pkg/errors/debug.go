package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorDump flattens an error chain for structured logging.
type ErrorDump struct {
	Top   string
	Code  Code
	Chain []string

	// Postgres fields, set when the chain holds a *pgconn.PgError.
	PGCode       string
	PGConstraint string
	PGTable      string
	PGMessage    string
}

// Dump walks err's chain, capturing the typed code and postgres error fields.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Top: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		d.PGCode = pgErr.Code
		d.PGConstraint = pgErr.ConstraintName
		d.PGTable = pgErr.TableName
		d.PGMessage = pgErr.Message
	}
	return d
}

// Fields renders the dump as logger fields. Empty postgres fields are omitted.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Top,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_message"] = d.PGMessage
		fields["pg_table"] = d.PGTable
		fields["pg_constraint"] = d.PGConstraint
	}
	return fields
}
