package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/cracks/internal/models"
)

type stubSessionStore struct {
	sessions map[string]*Session
}

func (s *stubSessionStore) PutSession(sess *Session) error {
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *stubSessionStore) GetSession(id string) (*Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

func (s *stubSessionStore) DeleteSessionsBefore(cutoff time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func newTestSessionService() (*SessionService, *stubSessionStore, *time.Time) {
	store := &stubSessionStore{sessions: map[string]*Session{}}
	svc := NewSessionService(store, time.Hour)
	clock := time.Date(2024, 12, 3, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	n := 0
	svc.idGen = func() string {
		n++
		return "sess-" + string(rune('0'+n))
	}
	return svc, store, &clock
}

func TestSessionAccumulatesAnswers(t *testing.T) {
	svc, _, _ := newTestSessionService()

	sess, err := svc.Start("")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.False(t, sess.Authenticated())

	_, err = svc.Answer(sess.ID, models.Payload{"question": models.String("Why ice?")})
	require.NoError(t, err)
	got, err := svc.Answer(sess.ID, models.Payload{"name": models.String("Ada"), "question": models.String("Cracks.")})
	require.NoError(t, err)

	want := models.Payload{"question": models.String("Cracks."), "name": models.String("Ada")}
	assert.True(t, want.Equal(got.Data), "got %v", got.Data.Any())
}

func TestSessionAnswerValidation(t *testing.T) {
	svc, _, _ := newTestSessionService()
	sess, err := svc.Start("")
	require.NoError(t, err)

	_, err = svc.Answer(sess.ID, nil)
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorInvalid, se.Code)

	_, err = svc.Answer(sess.ID, models.Payload{" ": models.Bool(true)})
	require.Error(t, err)

	_, err = svc.Answer("missing", models.Payload{"a": models.Bool(true)})
	se, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorNotFound, se.Code)
}

func TestSessionExpiry(t *testing.T) {
	svc, store, clock := newTestSessionService()
	sess, err := svc.Start("sig")
	require.NoError(t, err)

	*clock = clock.Add(59 * time.Minute)
	_, err = svc.Get(sess.ID)
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	_, err = svc.Get(sess.ID)
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorNotFound, se.Code)

	assert.Equal(t, 1, svc.Sweep())
	assert.Empty(t, store.sessions)
}

func TestSessionAuthenticate(t *testing.T) {
	svc, _, _ := newTestSessionService()
	sess, err := svc.Start("")
	require.NoError(t, err)

	_, err = svc.Authenticate(sess.ID, "")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorUnauthorized, se.Code)

	got, err := svc.Authenticate(sess.ID, testSignature)
	require.NoError(t, err)
	assert.True(t, got.Authenticated())
}

func TestSessionMarkReadOnce(t *testing.T) {
	svc, _, _ := newTestSessionService()
	sess, err := svc.Start("")
	require.NoError(t, err)

	first, err := svc.MarkRead(sess.ID, "We are mapping an energy process.")
	require.NoError(t, err)
	assert.True(t, first)
	first, err = svc.MarkRead(sess.ID, "We are mapping an energy process.")
	require.NoError(t, err)
	assert.False(t, first)
	first, err = svc.MarkRead(sess.ID, "When is the next big crack?")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestSessionDichotomy(t *testing.T) {
	svc, _, _ := newTestSessionService()
	sess, err := svc.Start("")
	require.NoError(t, err)

	q := NewDichotomy("time")
	got, msg, err := svc.AnswerDichotomy(sess.ID, q, 0.95)
	require.NoError(t, err)
	assert.Equal(t, "Meh. Balloons?", msg)
	v, ok := got.Data["time"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 0.95, v)

	_, _, err = svc.AnswerDichotomy(sess.ID, q, 1.5)
	require.Error(t, err)
}

func TestSessionSubmit(t *testing.T) {
	svc, _, _ := newTestSessionService()
	records := newStubRecordStore()
	agg := newTestAggregator(records)

	anon, err := svc.Start("")
	require.NoError(t, err)
	_, err = svc.Answer(anon.ID, models.Payload{"q1": models.String("yes")})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), anon.ID, agg)
	require.ErrorIs(t, err, ErrMissingIdentity)

	empty, err := svc.Start(testSignature)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), empty.ID, agg)
	require.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, records.reads)

	_, err = svc.Authenticate(anon.ID, testSignature)
	require.NoError(t, err)
	res, err := svc.Submit(context.Background(), anon.ID, agg)
	require.NoError(t, err)
	assert.False(t, res.PriorExists)
	assert.True(t, records.stored(t, "cryosphere", testSignature, "nucleation_01").Equal(models.Payload{"q1": models.String("yes")}))
}
