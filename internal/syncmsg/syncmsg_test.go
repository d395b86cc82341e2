package syncmsg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPersistBatchesOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("geral", "alice", "hi", int64(1740845100)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("games", "bob", "oi", int64(1740845160)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	msgs := []redis.XMessage{
		{ID: "1-0", Values: map[string]any{
			"room": "geral", "username": "alice", "content": "hi", "at": "1740845100",
		}},
		{ID: "2-0", Values: map[string]any{
			"room": "games", "username": "bob", "content": "oi", "at": "1740845160",
		}},
	}

	require.NoError(t, persist(context.Background(), db, msgs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("geral", "alice", "hi", int64(1740845100)).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	msgs := []redis.XMessage{
		{ID: "1-0", Values: map[string]any{
			"room": "geral", "username": "alice", "content": "hi", "at": "1740845100",
		}},
	}

	require.Error(t, persist(context.Background(), db, msgs))
	require.NoError(t, mock.ExpectationsWereMet())
}
