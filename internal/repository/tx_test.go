package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx_BeginFails(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := txm.WithTx(context.Background(), func(tx *sql.Tx) error {
		called = true
		return nil
	})
	assert.EqualError(t, err, "too many connections")
	assert.False(t, called)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = txm.WithTx(context.Background(), func(tx *sql.Tx) error {
			panic("boom")
		})
	})
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := txm.WithTx(context.Background(), func(tx *sql.Tx) error { return nil })
	assert.EqualError(t, err, "serialization failure")
}
