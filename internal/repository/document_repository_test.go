package repository_test

import (
	"context"
	"regexp"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/repository"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*repository.DocumentRepository, sqlmock.Sqlmock) {
	db, mockSQL, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewDocumentRepository(&config.Database{DB: sqlxDB})

	return repo, mockSQL
}

func TestLockForSigning_FirstSignatureWins(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		UPDATE documents
		SET locked_at = NOW(), locked_by = $2, updated_at = NOW()
		WHERE uuid = $1 AND locked_at IS NULL
	`)

	mockSQL.ExpectExec(query).
		WithArgs("doc1", "rec1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	locked, err := repo.LockForSigning(context.Background(), repo.DB, "doc1", "rec1")

	require.NoError(t, err)
	assert.True(t, locked)
	assert.NoError(t, mockSQL.ExpectationsWereMet())
}

func TestLockForSigning_SecondSignatureIsNotFirst(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		UPDATE documents
		SET locked_at = NOW(), locked_by = $2, updated_at = NOW()
		WHERE uuid = $1 AND locked_at IS NULL
	`)

	// блокировка уже стоит, условный UPDATE не затронул ни одной строки
	mockSQL.ExpectExec(query).
		WithArgs("doc1", "rec2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	locked, err := repo.LockForSigning(context.Background(), repo.DB, "doc1", "rec2")

	require.NoError(t, err)
	assert.False(t, locked)
}

func TestTransitionStatus_OnlyFromExpectedState(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		UPDATE documents
		SET status = $3, updated_at = NOW()
		WHERE uuid = $1 AND status = $2
	`)

	mockSQL.ExpectExec(query).
		WithArgs("doc1", model.StatusSent, model.StatusViewed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSQL.ExpectExec(query).
		WithArgs("doc1", model.StatusSent, model.StatusViewed).
		WillReturnResult(sqlmock.NewResult(0, 0))

	transitioned, err := repo.TransitionStatus(context.Background(), repo.DB, "doc1", model.StatusSent, model.StatusViewed)
	require.NoError(t, err)
	assert.True(t, transitioned)

	// документ уже в viewed, повторный переход молча не срабатывает
	transitioned, err = repo.TransitionStatus(context.Background(), repo.DB, "doc1", model.StatusSent, model.StatusViewed)
	require.NoError(t, err)
	assert.False(t, transitioned)
}

func TestSetBlockchainProof_WriteOnce(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		UPDATE documents
		SET blockchain_tx_hash = $2, blockchain_doc_hash = $3, blockchain_verified_at = $4, updated_at = NOW()
		WHERE uuid = $1 AND blockchain_tx_hash IS NULL
	`)

	verifiedAt := time.Now().UTC()
	mockSQL.ExpectExec(query).
		WithArgs("doc1", "0xtxhash", "dochash", verifiedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetBlockchainProof(context.Background(), repo.DB, "doc1", "0xtxhash", "dochash", verifiedAt)

	require.NoError(t, err)
	assert.NoError(t, mockSQL.ExpectationsWereMet())
}

func TestListUnanchored_ReturnsCandidates(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		SELECT uuid FROM documents
		WHERE status = $1 AND blockchain_tx_hash IS NULL AND updated_at < $2
		ORDER BY updated_at ASC
	`)

	rows := sqlmock.NewRows([]string{"uuid"}).
		AddRow("doc1").
		AddRow("doc2")
	mockSQL.ExpectQuery(query).
		WithArgs(model.StatusCompleted, sqlmock.AnyArg()).
		WillReturnRows(rows)

	uuids, err := repo.ListUnanchored(context.Background(), repo.DB, 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2"}, uuids)
}

func TestHasSucceededPayment(t *testing.T) {
	repo, mockSQL := newMockRepository(t)

	query := regexp.QuoteMeta(`
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE document_uuid = $1 AND status = $2
		)
	`)

	mockSQL.ExpectQuery(query).
		WithArgs("doc1", model.PaymentStatusSucceeded).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	collected, err := repo.HasSucceededPayment(context.Background(), repo.DB, "doc1")

	require.NoError(t, err)
	assert.True(t, collected)
}
