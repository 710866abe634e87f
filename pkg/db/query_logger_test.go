package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

func newBufferedQueryLogger(slow time.Duration) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: &buf, Format: "json"})
	return newQueryLogger(logg, slow), &buf
}

func TestQueryLoggerLogsFailedStatements(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Second)
	q.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT INTO checkout_completions", 0
	}, errors.New("disk full"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["message"] != "db.query_failed" {
		t.Fatalf("unexpected message %v", entry["message"])
	}
	if entry["sql"] != "INSERT INTO checkout_completions" {
		t.Fatalf("expected sql field, got %v", entry["sql"])
	}
}

func TestQueryLoggerIgnoresRecordNotFound(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Second)
	q.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
}

func TestQueryLoggerFlagsSlowQueries(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Millisecond)
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}
}

func TestQueryLoggerSilentMode(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Millisecond)
	silent := q.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
	if q.level != gormlogger.Warn {
		t.Fatal("LogMode must not mutate the receiver")
	}
}
