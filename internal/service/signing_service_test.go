package service_test

import (
	"context"
	"database/sql"
	"errors"
	"signing-web-server/internal/model"
	"signing-web-server/internal/service"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== Моки репозиториев и сервисов =====

type MockDocumentRepository struct{ mock.Mock }

func (m *MockDocumentRepository) Create(ctx context.Context, exec sqlx.ExtContext, document *model.Document) error {
	return m.Called(ctx, exec, document).Error(0)
}

func (m *MockDocumentRepository) GetByUUID(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (*model.Document, error) {
	args := m.Called(ctx, exec, documentUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByOwner(ctx context.Context, exec sqlx.ExtContext, documentUUID string, ownerUUID string) (*model.Document, error) {
	args := m.Called(ctx, exec, documentUUID, ownerUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) MarkSent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, settings model.DocumentSettings, expiresAt *time.Time) error {
	return m.Called(ctx, exec, documentUUID, settings, expiresAt).Error(0)
}

func (m *MockDocumentRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, from, to model.DocumentStatus) (bool, error) {
	args := m.Called(ctx, exec, documentUUID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, status model.DocumentStatus) error {
	return m.Called(ctx, exec, documentUUID, status).Error(0)
}

func (m *MockDocumentRepository) UpdateContent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, content model.DocumentContent) error {
	return m.Called(ctx, exec, documentUUID, content).Error(0)
}

func (m *MockDocumentRepository) LockForSigning(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipientUUID string) (bool, error) {
	args := m.Called(ctx, exec, documentUUID, recipientUUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) SetBlockchainProof(ctx context.Context, exec sqlx.ExtContext, documentUUID string, txHash string, documentHash string, verifiedAt time.Time) error {
	return m.Called(ctx, exec, documentUUID, txHash, documentHash, verifiedAt).Error(0)
}

func (m *MockDocumentRepository) ListUnanchored(ctx context.Context, exec sqlx.ExtContext, grace time.Duration) ([]string, error) {
	args := m.Called(ctx, exec, grace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDocumentRepository) HasSucceededPayment(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (bool, error) {
	args := m.Called(ctx, exec, documentUUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	args := m.Called(ctx)
	return args.Get(0).(sqlx.ExtContext), args.Get(1).(func() error), args.Get(2).(func() error), args.Error(3)
}

type MockRecipientRepository struct{ mock.Mock }

func (m *MockRecipientRepository) GetByToken(ctx context.Context, exec sqlx.ExtContext, accessToken string) (*model.Recipient, error) {
	args := m.Called(ctx, exec, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.Recipient, error) {
	args := m.Called(ctx, exec, documentUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) MarkViewed(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, userAgent string) (bool, error) {
	args := m.Called(ctx, exec, recipientUUID, userAgent)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecipientRepository) MarkSigned(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, signature *model.SignatureData, ipAddress string) (bool, error) {
	args := m.Called(ctx, exec, recipientUUID, signature, ipAddress)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecipientRepository) MarkDeclined(ctx context.Context, exec sqlx.ExtContext, recipientUUID string) (bool, error) {
	args := m.Called(ctx, exec, recipientUUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecipientRepository) ReplaceForDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipients []model.Recipient) error {
	return m.Called(ctx, exec, documentUUID, recipients).Error(0)
}

type MockEventRepository struct{ mock.Mock }

func (m *MockEventRepository) Append(ctx context.Context, exec sqlx.ExtContext, event *model.DocumentEvent) error {
	return m.Called(ctx, exec, event).Error(0)
}

func (m *MockEventRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.DocumentEvent, error) {
	args := m.Called(ctx, exec, documentUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentEvent), args.Error(1)
}

type MockCacheRepository struct{ mock.Mock }

func (m *MockCacheRepository) GetSession(ctx context.Context, accessToken string) (*model.SigningSession, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SigningSession), args.Error(1)
}

func (m *MockCacheRepository) SetSession(ctx context.Context, accessToken string, session *model.SigningSession) error {
	return m.Called(ctx, accessToken, session).Error(0)
}

func (m *MockCacheRepository) DeleteSession(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

type MockAnchorService struct{ mock.Mock }

func (m *MockAnchorService) AnchorDocument(ctx context.Context, documentUUID string) error {
	return m.Called(ctx, documentUUID).Error(0)
}

func (m *MockAnchorService) DispatchEthscriptions(ctx context.Context, documentUUID string) error {
	return m.Called(ctx, documentUUID).Error(0)
}

func (m *MockAnchorService) VerifyDocumentHash(ctx context.Context, network string, txHash string, expectedHash string) (*model.VerificationResult, error) {
	args := m.Called(ctx, network, txHash, expectedHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerificationResult), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyRecipientInvite(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return m.Called(ctx, document, recipient).Error(0)
}

func (m *MockNotifier) NotifyOwnerViewed(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return m.Called(ctx, document, recipient).Error(0)
}

func (m *MockNotifier) NotifySignerConfirmation(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return m.Called(ctx, document, recipient).Error(0)
}

func (m *MockNotifier) NotifyEthscriptionReceipt(ctx context.Context, document *model.Document, recipient *model.Recipient, txHash string, explorerURL string) error {
	return m.Called(ctx, document, recipient, txHash, explorerURL).Error(0)
}

type fakeTx struct{}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (f *fakeTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (f *fakeTx) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return nil, nil
}
func (f *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return &sqlx.Row{}
}
func (f *fakeTx) BindNamed(query string, arg interface{}) (string, []interface{}, error) {
	return "", nil, nil
}
func (f *fakeTx) DriverName() string         { return "fake" }
func (f *fakeTx) Rebind(query string) string { return query }

// ===== Функция для создания сервиса с моками =====

type signingMocks struct {
	docs     *MockDocumentRepository
	recips   *MockRecipientRepository
	events   *MockEventRepository
	cache    *MockCacheRepository
	anchor   *MockAnchorService
	notifier *MockNotifier
}

func newTestSigningService() (*service.SigningService, *signingMocks) {
	m := &signingMocks{
		docs:     new(MockDocumentRepository),
		recips:   new(MockRecipientRepository),
		events:   new(MockEventRepository),
		cache:    new(MockCacheRepository),
		anchor:   new(MockAnchorService),
		notifier: new(MockNotifier),
	}

	svc := service.NewSigningService(m.docs, m.recips, m.events, m.cache, m.anchor, m.notifier, time.Second)
	return svc, m
}

func expectTX(m *MockDocumentRepository) {
	noop := func() error { return nil }
	m.On("BeginTX", mock.Anything).Return(sqlx.ExtContext(&fakeTx{}), noop, noop, nil)
}

func sentDocument(uuid string) *model.Document {
	return &model.Document{
		UUID:    uuid,
		Title:   "Договор",
		Status:  model.StatusSent,
		Content: model.DocumentContent{},
	}
}

func pendingSigner(uuid, documentUUID, token string, order int) *model.Recipient {
	return &model.Recipient{
		UUID:         uuid,
		DocumentUUID: documentUUID,
		Email:        uuid + "@example.com",
		Role:         model.RoleSigner,
		AccessToken:  token,
		SigningOrder: order,
		Status:       model.RecipientPending,
	}
}

// ===== Тесты View =====

func TestView_FirstViewTransitionsStatuses(t *testing.T) {
	svc, m := newTestSigningService()
	ctx := context.Background()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	m.cache.On("GetSession", mock.Anything, "tok1").Return(nil, nil)
	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkViewed", mock.Anything, mock.Anything, "rec1", "test-agent").Return(true, nil)
	m.docs.On("TransitionStatus", mock.Anything, mock.Anything, "doc1", model.StatusSent, model.StatusViewed).Return(true, nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentViewed
	})).Return(nil).Once()
	m.cache.On("SetSession", mock.Anything, "tok1", mock.Anything).Return(nil)
	m.notifier.On("NotifyOwnerViewed", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	session, payment, err := svc.View(ctx, "tok1", "test-agent")

	require.NoError(t, err)
	assert.Equal(t, model.StatusViewed, session.Document.Status)
	assert.Equal(t, model.RecipientViewed, session.Recipient.Status)
	assert.False(t, payment.Required)

	m.docs.AssertExpectations(t)
	m.recips.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

func TestView_RepeatServedFromCache(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Status = model.StatusViewed
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)
	recipient.Status = model.RecipientViewed

	m.cache.On("GetSession", mock.Anything, "tok1").
		Return(&model.SigningSession{Document: doc, Recipient: recipient}, nil)

	session, _, err := svc.View(context.Background(), "tok1", "test-agent")

	require.NoError(t, err)
	assert.Equal(t, "doc1", session.Document.UUID)
	// БД не трогаем вовсе
	m.docs.AssertNotCalled(t, "BeginTX", mock.Anything)
	m.recips.AssertNotCalled(t, "MarkViewed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestView_CachedSessionExpiresAtReadTime(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	past := time.Now().UTC().Add(-time.Hour)
	doc.ExpiresAt = &past
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	m.cache.On("GetSession", mock.Anything, "tok1").
		Return(&model.SigningSession{Document: doc, Recipient: recipient}, nil)

	_, _, err := svc.View(context.Background(), "tok1", "test-agent")

	assert.ErrorIs(t, err, model.ErrDocumentExpired)
}

func TestView_UnknownToken(t *testing.T) {
	svc, m := newTestSigningService()

	m.cache.On("GetSession", mock.Anything, "bogus").Return(nil, nil)
	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "bogus").Return(nil, errors.New("sql: no rows in result set"))

	_, _, err := svc.View(context.Background(), "bogus", "test-agent")

	assert.ErrorIs(t, err, model.ErrInvalidLink)
}

func TestView_DraftNotYetSent(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Status = model.StatusDraft
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	m.cache.On("GetSession", mock.Anything, "tok1").Return(nil, nil)
	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)

	_, _, err := svc.View(context.Background(), "tok1", "test-agent")

	assert.ErrorIs(t, err, model.ErrNotYetSent)
}

// ===== Тесты SubmitSignature =====

func TestSubmitSignature_LastSignerCompletesAndAnchors(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Status = model.StatusViewed
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)
	recipient.Status = model.RecipientViewed

	signedCopy := *recipient
	signedCopy.Status = model.RecipientSigned

	anchorDone := make(chan struct{})

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkSigned", mock.Anything, mock.Anything, "rec1", mock.Anything, "127.0.0.1").Return(true, nil)
	m.docs.On("LockForSigning", mock.Anything, mock.Anything, "doc1", "rec1").Return(true, nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentLocked
	})).Return(nil).Once()
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return([]model.Recipient{signedCopy}, nil)
	m.docs.On("UpdateStatus", mock.Anything, mock.Anything, "doc1", model.StatusCompleted).Return(nil).Once()
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentSigned
	})).Return(nil).Once()
	m.cache.On("DeleteSession", mock.Anything, "tok1").Return(nil)
	m.anchor.On("AnchorDocument", mock.Anything, "doc1").Return(nil).Once()
	m.anchor.On("DispatchEthscriptions", mock.Anything, "doc1").Return(nil).Once().
		Run(func(args mock.Arguments) { close(anchorDone) })
	m.notifier.On("NotifySignerConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	result, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	require.NoError(t, err)
	assert.True(t, result.AllSigned)
	assert.Equal(t, "doc1", result.DocumentUUID)

	select {
	case <-anchorDone:
	case <-time.After(2 * time.Second):
		t.Fatal("якорение не было запущено после полного подписания")
	}

	m.docs.AssertExpectations(t)
	m.events.AssertExpectations(t)
	m.anchor.AssertExpectations(t)
}

func TestSubmitSignature_NotAllSignedYet(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)
	other := pendingSigner("rec2", "doc1", "tok2", 2)

	signedCopy := *recipient
	signedCopy.Status = model.RecipientSigned

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkSigned", mock.Anything, mock.Anything, "rec1", mock.Anything, "127.0.0.1").Return(true, nil)
	m.docs.On("LockForSigning", mock.Anything, mock.Anything, "doc1", "rec1").Return(true, nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return([]model.Recipient{signedCopy, *other}, nil)
	m.cache.On("DeleteSession", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("NotifySignerConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	result, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{Type: "typed", Data: "Иван"}, nil, "127.0.0.1")

	require.NoError(t, err)
	assert.False(t, result.AllSigned)
	// документ не завершён и якорение не запускается
	m.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, "doc1", model.StatusCompleted)
	m.anchor.AssertNotCalled(t, "AnchorDocument", mock.Anything, mock.Anything)
}

func TestSubmitSignature_SecondSignerDoesNotRelock(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Status = model.StatusViewed
	first := pendingSigner("rec1", "doc1", "tok1", 1)
	first.Status = model.RecipientSigned
	second := pendingSigner("rec2", "doc1", "tok2", 2)
	third := pendingSigner("rec3", "doc1", "tok3", 3)

	secondSigned := *second
	secondSigned.Status = model.RecipientSigned

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok2").Return(second, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkSigned", mock.Anything, mock.Anything, "rec2", mock.Anything, "127.0.0.1").Return(true, nil)
	// блокировка уже взята первой подписью, условный UPDATE ничего не меняет
	m.docs.On("LockForSigning", mock.Anything, mock.Anything, "doc1", "rec2").Return(false, nil)
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").
		Return([]model.Recipient{*first, secondSigned, *third}, nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentSigned
	})).Return(nil).Once()
	m.cache.On("DeleteSession", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("NotifySignerConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	result, err := svc.SubmitSignature(context.Background(), "tok2", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	require.NoError(t, err)
	assert.False(t, result.AllSigned)
	// событие блокировки пишет только первая подпись
	m.events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentLocked
	}))
	m.events.AssertExpectations(t)
}

func TestSubmitSignature_RepeatIsConflict(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	// условный UPDATE ничего не изменил: подпись уже записана другим запросом
	m.recips.On("MarkSigned", mock.Anything, mock.Anything, "rec1", mock.Anything, "127.0.0.1").Return(false, nil)

	_, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrAlreadySigned)
	m.docs.AssertNotCalled(t, "LockForSigning", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitSignature_WaitsForPriorSigner(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Settings.RequireSigningOrder = true
	first := pendingSigner("rec1", "doc1", "tok1", 1)
	second := pendingSigner("rec2", "doc1", "tok2", 2)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok2").Return(second, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return([]model.Recipient{*first, *second}, nil)

	_, err := svc.SubmitSignature(context.Background(), "tok2", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrWaitingOnPriorSigner)
	m.recips.AssertNotCalled(t, "MarkSigned", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitSignature_ViewerForbidden(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	viewer := pendingSigner("rec1", "doc1", "tok1", 1)
	viewer.Role = model.RoleViewer

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(viewer, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)

	_, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestSubmitSignature_EmptySignatureRejected(t *testing.T) {
	svc, _ := newTestSigningService()

	_, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{}, nil, "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmitSignature_ExpiredDocument(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	past := time.Now().UTC().Add(-time.Minute)
	doc.ExpiresAt = &past
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)

	_, err := svc.SubmitSignature(context.Background(), "tok1", model.SignatureData{Type: "drawn", Data: "base64"}, nil, "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrDocumentExpired)
}

// ===== Тесты Decline =====

func TestDecline_TerminatesDocument(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkDeclined", mock.Anything, mock.Anything, "rec1").Return(true, nil)
	m.docs.On("UpdateStatus", mock.Anything, mock.Anything, "doc1", model.StatusDeclined).Return(nil).Once()
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventDocumentDeclined && e.Payload["reason"] == "не устраивают условия"
	})).Return(nil).Once()
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return([]model.Recipient{*recipient}, nil)
	m.cache.On("DeleteSession", mock.Anything, "tok1").Return(nil)

	documentUUID, err := svc.Decline(context.Background(), "tok1", "не устраивают условия")

	require.NoError(t, err)
	assert.Equal(t, "doc1", documentUUID)
	m.docs.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

func TestDecline_ListFailureStillEvictsCallerSession(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkDeclined", mock.Anything, mock.Anything, "rec1").Return(true, nil)
	m.docs.On("UpdateStatus", mock.Anything, mock.Anything, "doc1", model.StatusDeclined).Return(nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	// чтение получателей для инвалидации кэша упало
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return(nil, assert.AnError)
	m.cache.On("DeleteSession", mock.Anything, "tok1").Return(nil).Once()

	_, err := svc.Decline(context.Background(), "tok1", "")

	require.NoError(t, err)
	// сессия инициатора удалена несмотря на ошибку чтения
	m.cache.AssertExpectations(t)
}

func TestDecline_AfterSignIsConflict(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)
	recipient.Status = model.RecipientSigned

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.recips.On("MarkDeclined", mock.Anything, mock.Anything, "rec1").Return(false, nil)

	_, err := svc.Decline(context.Background(), "tok1", "")

	assert.ErrorIs(t, err, model.ErrAlreadySigned)
	m.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecline_OnDeclinedDocument(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Status = model.StatusDeclined
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)

	_, err := svc.Decline(context.Background(), "tok1", "")

	assert.ErrorIs(t, err, model.ErrAlreadyDeclined)
}

// ===== Тесты UpdatePricingSelection =====

func TestUpdatePricingSelection_RewritesSelection(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Content = model.DocumentContent{
		{
			ID:   "block-1",
			Type: model.BlockTypePricingTable,
			Content: map[string]any{
				"items": []any{
					map[string]any{"id": "item-1", "isSelected": false},
					map[string]any{"id": "item-2", "isSelected": true},
				},
			},
		},
	}
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.docs.On("UpdateContent", mock.Anything, mock.Anything, "doc1", mock.MatchedBy(func(content model.DocumentContent) bool {
		items := content[0].Content["items"].([]any)
		first := items[0].(map[string]any)
		second := items[1].(map[string]any)
		return first["isSelected"] == true && second["isSelected"] == false
	})).Return(nil).Once()
	m.events.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.DocumentEvent) bool {
		return e.EventType == model.EventPricingUpdated
	})).Return(nil).Once()
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return([]model.Recipient{*recipient}, nil)
	m.cache.On("DeleteSession", mock.Anything, "tok1").Return(nil)

	documentUUID, err := svc.UpdatePricingSelection(context.Background(), "tok1", "block-1", []string{"item-1"})

	require.NoError(t, err)
	assert.Equal(t, "doc1", documentUUID)
	m.docs.AssertExpectations(t)
}

func TestUpdatePricingSelection_ListFailureStillEvictsCallerSession(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Content = model.DocumentContent{
		{
			ID:   "block-1",
			Type: model.BlockTypePricingTable,
			Content: map[string]any{
				"items": []any{map[string]any{"id": "item-1", "isSelected": false}},
			},
		},
	}
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)
	m.docs.On("UpdateContent", mock.Anything, mock.Anything, "doc1", mock.Anything).Return(nil)
	m.events.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.recips.On("ListByDocument", mock.Anything, mock.Anything, "doc1").Return(nil, assert.AnError)
	m.cache.On("DeleteSession", mock.Anything, "tok1").Return(nil).Once()

	_, err := svc.UpdatePricingSelection(context.Background(), "tok1", "block-1", []string{"item-1"})

	require.NoError(t, err)
	m.cache.AssertExpectations(t)
}

func TestUpdatePricingSelection_WrongBlockType(t *testing.T) {
	svc, m := newTestSigningService()

	doc := sentDocument("doc1")
	doc.Content = model.DocumentContent{
		{ID: "block-1", Type: model.BlockTypeText, Content: map[string]any{"text": "привет"}},
	}
	recipient := pendingSigner("rec1", "doc1", "tok1", 1)

	expectTX(m.docs)
	m.recips.On("GetByToken", mock.Anything, mock.Anything, "tok1").Return(recipient, nil)
	m.docs.On("GetByUUID", mock.Anything, mock.Anything, "doc1").Return(doc, nil)

	_, err := svc.UpdatePricingSelection(context.Background(), "tok1", "block-1", []string{"item-1"})

	assert.ErrorIs(t, err, model.ErrValidation)
	m.docs.AssertNotCalled(t, "UpdateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
