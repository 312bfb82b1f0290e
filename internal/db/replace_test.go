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

func testConfig() ReplaceConfig {
	return ReplaceConfig{
		Table:   "geo.tr_boundaries",
		Columns: []string{"level", "shape_iso", "shape_name", "geom"},
		KeyCol:  "level",
		KeyVal:  "province",
	}
}

func TestReplacePartition_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "geo"."tr_boundaries" WHERE "level" = \$1`).
		WithArgs("province").
		WillReturnResult(pgxmock.NewResult("DELETE", 81))
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "tr_boundaries"}, testConfig().Columns).WillReturnResult(2)
	mock.ExpectCommit()

	rows := [][]any{
		{"province", "TR-06", "Ankara", []byte{1}},
		{"province", "TR-34", "İstanbul", []byte{1}},
	}
	n, err := ReplacePartition(context.Background(), mock, testConfig(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePartition_EmptyRowsStillDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM`).WithArgs("province").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	n, err := ReplacePartition(context.Background(), mock, testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePartition_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM`).WithArgs("province").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"geo", "tr_boundaries"}, testConfig().Columns).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = ReplacePartition(context.Background(), mock, testConfig(), [][]any{{"province", "TR-06", "Ankara", nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO geo.tr_boundaries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePartition_Validation(t *testing.T) {
	_, err := ReplacePartition(context.Background(), nil, ReplaceConfig{Table: "t"}, nil)
	assert.ErrorContains(t, err, "no columns")

	_, err = ReplacePartition(context.Background(), nil, ReplaceConfig{Table: "t", Columns: []string{"a"}}, nil)
	assert.ErrorContains(t, err, "no key column")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"geo.tr_boundaries", `"geo"."tr_boundaries"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
