package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "cave_tags", []string{"cave_id", "category", "tag_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"cave_tags"}, []string{"cave_id", "category", "tag_id"}).WillReturnResult(2)

	rows := [][]any{{"c1", "geology", "t1"}, {"c1", "biology", "t2"}}
	n, err := CopyFrom(context.Background(), mock, "cave_tags", []string{"cave_id", "category", "tag_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"entrance_tags"}, []string{"entrance_id", "category", "tag_id"}).
		WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "entrance_tags", []string{"entrance_id", "category", "tag_id"}, [][]any{{"e1", "entrance_status", "t1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO entrance_tags")
	assert.NoError(t, mock.ExpectationsWereMet())
}
