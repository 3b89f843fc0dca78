package service_test

import (
	"context"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/service"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type dispatchMocks struct {
	docs     *MockDocumentRepository
	recips   *MockRecipientRepository
	events   *MockEventRepository
	storage  *MockS3Storage
	notifier *MockNotifier
}

func newTestDispatchService() (*service.DispatchService, *dispatchMocks) {
	m := &dispatchMocks{
		docs:     new(MockDocumentRepository),
		recips:   new(MockRecipientRepository),
		events:   new(MockEventRepository),
		storage:  new(MockS3Storage),
		notifier: new(MockNotifier),
	}

	svc := service.NewDispatchService(&config.Database{}, m.docs, m.recips, m.events, m.storage, m.notifier, time.Second)
	return svc, m
}

// ===== Тесты GetAnchorProof =====

func TestGetAnchorProof_UsesStoredHashDespiteLaterMutations(t *testing.T) {
	svc, m := newTestDispatchService()

	// хэш, записанный воркером якорения; после якорения контент был
	// переписан инскрипцией, а updated_at сдвинут записью доказательства
	storedHash := "0919cc3c2c7a61a0f84572be1c7b1adfe0480b63e04f7e2a4aeab85a1c7ab7e2"
	txHash := "0xtxhash"
	verifiedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	doc := &model.Document{
		UUID:      "doc1",
		OwnerUUID: "owner1",
		Status:    model.StatusCompleted,
		Content: model.DocumentContent{
			{
				ID:   "block-1",
				Type: model.BlockTypeDataURI,
				Content: map[string]any{
					"inscriptionStatus": "completed",
					"inscriptionTxHash": "0xinscription",
				},
			},
		},
		BlockchainTxHash:     &txHash,
		BlockchainDocHash:    &storedHash,
		BlockchainVerifiedAt: &verifiedAt,
		UpdatedAt:            verifiedAt.Add(time.Minute),
	}

	// пересчёт по текущему состоянию дал бы другой ключ
	recomputed, _, err := service.CanonicalDocumentHash("doc1", doc.Content, nil, false, doc.UpdatedAt)
	require.NoError(t, err)
	require.NotEqual(t, storedHash, recomputed)

	expectTX(m.docs)
	m.docs.On("GetByOwner", mock.Anything, mock.Anything, "doc1", "owner1").Return(doc, nil)
	m.storage.On("GeneratePresignedGetURL", mock.Anything, "anchors/doc1/"+storedHash+".json", mock.Anything).
		Return("https://s3.local/anchors/doc1/"+storedHash+".json", nil).Once()

	document, snapshotURL, err := svc.GetAnchorProof(context.Background(), "owner1", "doc1")

	require.NoError(t, err)
	assert.Equal(t, txHash, *document.BlockchainTxHash)
	assert.Contains(t, snapshotURL, storedHash)
	m.storage.AssertExpectations(t)
}

func TestGetAnchorProof_UnanchoredDocumentHasNoSnapshot(t *testing.T) {
	svc, m := newTestDispatchService()

	doc := &model.Document{
		UUID:      "doc1",
		OwnerUUID: "owner1",
		Status:    model.StatusViewed,
	}

	expectTX(m.docs)
	m.docs.On("GetByOwner", mock.Anything, mock.Anything, "doc1", "owner1").Return(doc, nil)

	document, snapshotURL, err := svc.GetAnchorProof(context.Background(), "owner1", "doc1")

	require.NoError(t, err)
	assert.Nil(t, document.BlockchainTxHash)
	assert.Empty(t, snapshotURL)
	m.storage.AssertNotCalled(t, "GeneratePresignedGetURL", mock.Anything, mock.Anything, mock.Anything)
}
