package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecordStartAndResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO tool_invocations").
		WithArgs(sqlmock.AnyArg(), "call-1", "identify_patient", `{"utterance":"hi"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := NewAuditLog(db)
	entryID, err := log.RecordStart(context.Background(), "call-1", "identify_patient", `{"utterance":"hi"}`)
	require.NoError(t, err)
	require.NotEmpty(t, entryID)

	mock.ExpectExec("UPDATE tool_invocations").
		WithArgs(`{"result":"ok"}`, true, int64(120), sqlmock.AnyArg(), entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = log.RecordResult(context.Background(), entryID, `{"result":"ok"}`, true, 120*time.Millisecond)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditNilSafe(t *testing.T) {
	log := NewAuditLog(nil)
	require.Nil(t, log)

	entryID, err := log.RecordStart(context.Background(), "call-1", "tool", "{}")
	assert.NoError(t, err)
	assert.Empty(t, entryID)
	assert.NoError(t, log.RecordResult(context.Background(), "", "", true, 0))
}
