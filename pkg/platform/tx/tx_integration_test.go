//go:build integration

package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"docbridge/pkg/platform/tx"
	"docbridge/pkg/testutil/containers"
)

func TestRunInTx(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	pg := containers.GetManager().GetPostgres(t)
	_, err := pg.Exec(ctx, `CREATE TABLE IF NOT EXISTS tx_probe (v INTEGER NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, pg.TruncateTables(ctx, "tx_probe"))

	runner := tx.NewRunner(pg.DB, 0)
	insert := func(ctx context.Context, v int) error {
		_, err := tx.Executor(ctx, pg.DB).ExecContext(ctx, `INSERT INTO tx_probe (v) VALUES ($1)`, v)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT count(*) FROM tx_probe`).Scan(&n))
		return n
	}

	boom := errors.New("boom")
	err = runner.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, insert(ctx, 1))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, count(), "failed unit of work is rolled back")

	err = runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := insert(ctx, 1); err != nil {
			return err
		}
		return runner.RunInTx(ctx, func(ctx context.Context) error {
			return insert(ctx, 2)
		})
	})
	require.NoError(t, err)
	require.Equal(t, 2, count())
}
