package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	chstore "github.com/ermakus/freqtrade/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed, applies the
// embedded schema and returns a connection to that database. The schema
// uses IF NOT EXISTS throughout, so it is replayed on every start.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	db, err := chstore.Database(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", db, err)
	}
	if err := applyClickhouseSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse server: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS `"+db+"`"); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}

func applyClickhouseSchema(ctx context.Context, conn *chstore.Conn) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}
	for _, name := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		// Exec over the native protocol takes one statement.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return nil
}

// splitStatements breaks a script on top-level semicolons, dropping "--"
// comment lines. A semicolon inside a quoted literal is an error since
// ClickHouse DDL never needs one.
func splitStatements(script string) ([]string, error) {
	var (
		stmts  []string
		cur    strings.Builder
		quoted bool
		offset int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for _, line := range strings.SplitAfter(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			offset += len(line)
			continue
		}
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'' && quoted && i+1 < len(line) && line[i+1] == '\'':
				cur.WriteString("''")
				i++
				continue
			case ch == '\'':
				quoted = !quoted
			case ch == ';' && quoted:
				return nil, fmt.Errorf("semicolon inside string literal at offset %d", offset+i)
			case ch == ';':
				flush()
				continue
			}
			cur.WriteByte(ch)
		}
		offset += len(line)
	}
	flush()
	return stmts, nil
}
