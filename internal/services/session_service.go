package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/cracks/internal/models"
)

// Session is the state of one visit: who the visitor is once authenticated,
// the answers gathered so far and which texts were already shown in full.
type Session struct {
	ID        string              `json:"id"`
	Signature string              `json:"-"`
	Data      models.Payload      `json:"data"`
	ReadTexts map[string]struct{} `json:"-"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

func (s *Session) Authenticated() bool { return strings.TrimSpace(s.Signature) != "" }

// Clone copies the session deeply enough that callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Data = s.Data.Clone()
	cp.ReadTexts = make(map[string]struct{}, len(s.ReadTexts))
	for k := range s.ReadTexts {
		cp.ReadTexts[k] = struct{}{}
	}
	return &cp
}

type SessionStore interface {
	PutSession(s *Session) error
	GetSession(id string) (*Session, error)
	DeleteSessionsBefore(cutoff time.Time) int
}

type SessionService struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
	idGen func() string
	mu    sync.Mutex
}

func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionService{
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

// Start opens a new visit, optionally already bound to a signature.
func (s *SessionService) Start(signature string) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        s.idGen(),
		Signature: signature,
		Data:      models.Payload{},
		ReadTexts: map[string]struct{}{},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.PutSession(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (s *SessionService) Get(id string) (*Session, error) {
	return s.load(id)
}

func (s *SessionService) load(id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidError("session id required")
	}
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess == nil || !s.now().Before(sess.ExpiresAt) {
		return nil, NewNotFoundError("session not found")
	}
	return sess, nil
}

func (s *SessionService) update(id string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.store.PutSession(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Authenticate binds the visit to the signature of the visitor's access key.
func (s *SessionService) Authenticate(id, signature string) (*Session, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, NewUnauthorizedError("signature required")
	}
	return s.update(id, func(sess *Session) error {
		sess.Signature = signature
		return nil
	})
}

// Answer records answers; a field answered again keeps the latest value.
func (s *SessionService) Answer(id string, answers models.Payload) (*Session, error) {
	if len(answers) == 0 {
		return nil, NewInvalidError("answers required")
	}
	for k := range answers {
		if strings.TrimSpace(k) == "" {
			return nil, NewInvalidError("answer field name required")
		}
	}
	return s.update(id, func(sess *Session) error {
		sess.Data = MergePayload(sess.Data, answers)
		return nil
	})
}

// AnswerDichotomy stores a slider answer under the question name and returns
// the feedback for it.
func (s *SessionService) AnswerDichotomy(id string, q Dichotomy, value float64) (*Session, string, error) {
	if err := q.Validate(value); err != nil {
		return nil, "", err
	}
	sess, err := s.Answer(id, models.Payload{q.Name: models.Number(value)})
	if err != nil {
		return nil, "", err
	}
	msg, _ := q.Classify(value)
	return sess, msg, nil
}

// MarkRead records that text was shown and reports whether this was the first time.
func (s *SessionService) MarkRead(id, text string) (bool, error) {
	first := false
	_, err := s.update(id, func(sess *Session) error {
		h := HashText(text)
		if sess.ReadTexts == nil {
			sess.ReadTexts = map[string]struct{}{}
		}
		if _, seen := sess.ReadTexts[h]; !seen {
			sess.ReadTexts[h] = struct{}{}
			first = true
		}
		return nil
	})
	return first, err
}

// Submit sends the answers gathered in the visit through agg.
func (s *SessionService) Submit(ctx context.Context, id string, agg *ResponseAggregator) (*SubmitResult, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return agg.Submit(ctx, sess.Signature, sess.Data)
}

// Sweep drops expired visits and returns how many were removed.
func (s *SessionService) Sweep() int {
	return s.store.DeleteSessionsBefore(s.now())
}

// HashText identifies a text without keeping it.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
