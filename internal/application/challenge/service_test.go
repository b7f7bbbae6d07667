package challenge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-marketplace-auth/internal/domain"
	redisstore "github.com/go-marketplace-auth/internal/infrastructure/redis"
	"github.com/go-marketplace-auth/internal/pkg/cipher"
)

// --- mocks ---

type mockMailer struct {
	mock.Mock
	mu   sync.Mutex
	last domain.MailMessage
}

func (m *mockMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	m.last = msg
	m.mu.Unlock()
	return m.Called(ctx, msg).Error(0)
}

func (m *mockMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.last.Payload.(domain.OTPCodePayload)
	require.True(t, ok)
	return p.Code
}

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) CompleteChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.AuthSession, error) {
	args := m.Called(ctx, email, purpose)
	if s, _ := args.Get(0).(*domain.AuthSession); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, c *domain.Challenge) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	args := m.Called(ctx, email, purpose)
	if c, _ := args.Get(0).(*domain.Challenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Consume(ctx context.Context, email string, purpose domain.Purpose, challengeID string) (bool, error) {
	args := m.Called(ctx, email, purpose, challengeID)
	return args.Bool(0), args.Error(1)
}
func (m *mockStore) RecordFailure(ctx context.Context, email string, purpose domain.Purpose, challengeID string, maxAttempts int) (int, error) {
	args := m.Called(ctx, email, purpose, challengeID, maxAttempts)
	return args.Int(0), args.Error(1)
}

// --- helpers ---

type fixture struct {
	mr        *miniredis.Miniredis
	store     *redisstore.ChallengeStore
	mailer    *mockMailer
	completer *mockCompleter
	clock     time.Time
	svc       Service
}

func newTestCipher(t *testing.T) *cipher.ChallengeCipher {
	t.Helper()
	key, err := cipher.GenerateKey()
	require.NoError(t, err)
	c, err := cipher.NewFromHex(key)
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:        mr,
		store:     redisstore.NewChallengeStore(client, "otp"),
		mailer:    new(mockMailer),
		completer: new(mockCompleter),
		clock:     time.Now(),
	}
	f.svc = NewService(ServiceDeps{
		Store:     f.store,
		Cipher:    newTestCipher(t),
		Mailer:    f.mailer,
		Completer: f.completer,
		OTPDigits: 6,
		Expiry:    5 * time.Minute,
		Now:       func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) issue(t *testing.T, purpose domain.Purpose) string {
	t.Helper()
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()
	require.NoError(t, f.svc.Issue(context.Background(), "a@x.com", purpose))
	return f.mailer.lastCode(t)
}

func authSession() *domain.AuthSession {
	return &domain.AuthSession{Token: "jwt", User: &domain.User{UserID: "user-1", Email: "a@x.com"}}
}

// --- Issue ---

func TestIssue_StoresOnlyCiphertextAndMailsCode(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeEmailVerification)
	assert.Len(t, code, 6)

	c, err := f.store.Get(context.Background(), "a@x.com", domain.PurposeEmailVerification)
	require.NoError(t, err)
	assert.NotEqual(t, code, c.Envelope)
	assert.Contains(t, c.Envelope, ":")
	assert.Equal(t, f.clock.Add(5*time.Minute).Unix(), c.ExpiresAt)

	f.mailer.mu.Lock()
	msg := f.mailer.last
	f.mailer.mu.Unlock()
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Verify your email", msg.Subject)
	assert.Equal(t, domain.TemplateOTPCode, msg.Template)
	assert.Equal(t, "5 minutes", msg.Payload.(domain.OTPCodePayload).ExpiryLabel)
}

func TestIssue_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.Issue(context.Background(), "  A@X.com", domain.PurposeSignIn))

	_, err := f.store.Get(context.Background(), "a@x.com", domain.PurposeSignIn)
	assert.NoError(t, err)
}

func TestIssue_UnknownPurpose(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Issue(context.Background(), "a@x.com", "welcome")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestIssue_MailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp: 421"))

	err := f.svc.Issue(context.Background(), "a@x.com", domain.PurposeSignIn)
	assert.ErrorIs(t, err, domain.ErrMailDelivery)
	assert.Contains(t, err.Error(), "failed to send OTP")

	_, err = f.store.Get(context.Background(), "a@x.com", domain.PurposeSignIn)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- Validate ---

func TestValidate_Success_CompletesChallenge(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeEmailVerification)
	f.completer.On("CompleteChallenge", mock.Anything, "a@x.com", domain.PurposeEmailVerification).Return(authSession(), nil)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeEmailVerification, code)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, "jwt", res.Session.Token)
	f.completer.AssertExpectations(t)
}

func TestValidate_SingleUse(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)
	f.completer.On("CompleteChallenge", mock.Anything, mock.Anything, mock.Anything).Return(authSession(), nil)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	require.True(t, res.Verified)

	res, err = f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	f.completer.AssertNumberOfCalls(t, "CompleteChallenge", 1)
}

func TestValidate_ReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, domain.PurposeSignIn)
	second := f.issue(t, domain.PurposeSignIn)
	for second == first {
		second = f.issue(t, domain.PurposeSignIn)
	}
	f.completer.On("CompleteChallenge", mock.Anything, mock.Anything, mock.Anything).Return(authSession(), nil)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, first)
	require.NoError(t, err)
	assert.False(t, res.Verified)

	res, err = f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, second)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestValidate_WrongCodeBelowLimitKeepsChallenge(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)
	f.completer.On("CompleteChallenge", mock.Anything, mock.Anything, mock.Anything).Return(authSession(), nil)

	for i := 0; i < 2; i++ {
		res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, wrongCode(code))
		require.NoError(t, err)
		assert.False(t, res.Verified)
	}
	c, err := f.store.Get(context.Background(), "a@x.com", domain.PurposeSignIn)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Attempts)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestValidate_LockedAfterMaxWrongCodes(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)

	for i := 0; i < 3; i++ {
		res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, wrongCode(code))
		require.NoError(t, err)
		assert.False(t, res.Verified)
	}
	_, err := f.store.Get(context.Background(), "a@x.com", domain.PurposeSignIn)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	f.completer.AssertNotCalled(t, "CompleteChallenge", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_ManyWrongCodesNeverUnlock(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)

	for i := 0; i < 1000; i++ {
		_, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, wrongCode(code))
		require.NoError(t, err)
	}
	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestValidate_ReissueAfterLockoutWorks(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, wrongCode(code))
		require.NoError(t, err)
	}
	f.completer.On("CompleteChallenge", mock.Anything, "a@x.com", domain.PurposeSignIn).Return(authSession(), nil)

	fresh := f.issue(t, domain.PurposeSignIn)
	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, fresh)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestValidate_ExhaustedChallengeFromStoreIsRejected(t *testing.T) {
	store := new(mockStore)
	svc := NewService(ServiceDeps{Store: store, Cipher: newTestCipher(t), Mailer: new(mockMailer), MaxAttempts: 3})
	store.On("Get", mock.Anything, "a@x.com", domain.PurposeSignIn).Return(&domain.Challenge{
		Email: "a@x.com", Purpose: domain.PurposeSignIn, ChallengeID: "c1",
		ExpiresAt: time.Now().Add(time.Minute).Unix(), Attempts: 3,
	}, nil)
	store.On("Consume", mock.Anything, "a@x.com", domain.PurposeSignIn, "c1").Return(true, nil)

	res, err := svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, "123456")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	store.AssertExpectations(t)
}

func TestValidate_RecordFailureFault(t *testing.T) {
	store := new(mockStore)
	c := newTestCipher(t)
	env, err := c.Encrypt("123456")
	require.NoError(t, err)
	svc := NewService(ServiceDeps{Store: store, Cipher: c, Mailer: new(mockMailer)})
	store.On("Get", mock.Anything, "a@x.com", domain.PurposeSignIn).Return(&domain.Challenge{
		Email: "a@x.com", Purpose: domain.PurposeSignIn, ChallengeID: "c1", Envelope: env,
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}, nil)
	store.On("RecordFailure", mock.Anything, "a@x.com", domain.PurposeSignIn, "c1", 3).Return(0, errors.New("redis down"))

	_, err = svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, "654321")
	assert.Error(t, err)
}

func TestValidate_PurposeMismatch(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeForgetPassword)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestValidate_Expired(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)
	f.clock = f.clock.Add(5*time.Minute + time.Second)

	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
	require.NoError(t, err)
	assert.False(t, res.Verified)

	_, err = f.store.Get(context.Background(), "a@x.com", domain.PurposeSignIn)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.completer.AssertNotCalled(t, "CompleteChallenge", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_NoChallenge(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, "123456")
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestValidate_MalformedEnvelopeIsInvalidCode(t *testing.T) {
	store := new(mockStore)
	svc := NewService(ServiceDeps{Store: store, Cipher: newTestCipher(t), Mailer: new(mockMailer)})
	store.On("Get", mock.Anything, "a@x.com", domain.PurposeSignIn).Return(&domain.Challenge{
		Email:       "a@x.com",
		Purpose:     domain.PurposeSignIn,
		ChallengeID: "c1",
		Envelope:    "no-delimiter",
		ExpiresAt:   time.Now().Add(time.Minute).Unix(),
	}, nil)

	res, err := svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, "123456")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	store.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_StoreFault(t *testing.T) {
	store := new(mockStore)
	svc := NewService(ServiceDeps{Store: store, Cipher: newTestCipher(t), Mailer: new(mockMailer)})
	store.On("Get", mock.Anything, "a@x.com", domain.PurposeSignIn).Return(nil, errors.New("connection reset"))

	res, err := svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, "123456")
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestValidate_CompleterFault(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeEmailVerification)
	f.completer.On("CompleteChallenge", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dynamo down"))

	_, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeEmailVerification, code)
	assert.ErrorContains(t, err, "complete challenge")
}

func TestValidate_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	code := f.issue(t, domain.PurposeSignIn)
	f.completer.On("CompleteChallenge", mock.Anything, mock.Anything, mock.Anything).Return(authSession(), nil)

	const workers = 20
	var wins atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.svc.Validate(context.Background(), "a@x.com", domain.PurposeSignIn, code)
			if err == nil && res.Verified {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	f.completer.AssertNumberOfCalls(t, "CompleteChallenge", 1)
}
