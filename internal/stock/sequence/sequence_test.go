package sequence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oct = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	assert.Equal(t, "DO-202610-0001", Format("DO", oct, 1))
	assert.Equal(t, "WO-202610-12345", Format("WO", oct, 12345))
	assert.Equal(t, "seq:GR202610", Key("GR", oct))
}

func TestPeriod_UsesUTC(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	firstOfNovLocal := time.Date(2026, 11, 1, 1, 0, 0, 0, berlin)
	assert.Equal(t, "202610", Period(firstOfNovLocal))
}

func TestPostgresCounter_Next(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO document_sequences")).
		WithArgs("GR", "202610").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(7)))

	got, err := NewPostgresCounter(db).Next(context.Background(), "GR", oct)
	require.NoError(t, err)
	assert.Equal(t, "GR-202610-0007", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
