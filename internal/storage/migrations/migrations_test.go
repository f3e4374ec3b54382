package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x String);

CREATE TABLE b (y String DEFAULT 'it''s');
`
	stmts, err := splitStatements(input)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x String)", stmts[0])
	assert.Contains(t, stmts[1], "'it''s'")
}

func TestSplitStatements_RejectsSemicolonInLiteral(t *testing.T) {
	_, err := splitStatements(`INSERT INTO t VALUES ('a;b');`)
	assert.Error(t, err)
}

func TestSplitStatements_CommentOnly(t *testing.T) {
	stmts, err := splitStatements("-- nothing here;\n\n")
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Contains(t, pg, "001_trades.sql")

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Contains(t, ch, "001_trade_events.sql")

	for _, f := range ch {
		data, err := ClickhouseFS.ReadFile("clickhouse/" + f)
		require.NoError(t, err)
		_, err = splitStatements(string(data))
		assert.NoError(t, err, f)
	}
}
