// internal/service/submission_service.go
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/codec"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/lookup"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/model"
	"github.com/unclebandit/spinwin-backend/internal/queue"
	"github.com/unclebandit/spinwin-backend/internal/repository"
)

const (
	msgMissingFields    = "Missing required fields"
	msgInvalidPhone     = "Invalid phone number (10 digits required)"
	msgMissingOffer     = "Missing name or offer"
	msgUnsupportedField = "Fields must not contain control characters or exceed 32767 characters"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// SubmitRequest is the contact form posted before the wheel spins.
type SubmitRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OfferRequest records the offer the wheel landed on.
type OfferRequest struct {
	Name  string `json:"name"`
	Offer string `json:"offer"`
}

// Result is returned for a completed submission.
type Result struct {
	Name  string `json:"name"`
	Offer string `json:"offer,omitempty"`
}

// SubmissionService owns every mutation of the ledger. Gate serialises the
// whole load-check-write sequence of each request; the sync worker shares it
// so a replica push never overlaps a write.
type SubmissionService struct {
	Ledger  repository.LedgerRepositoryInterface
	Queue   queue.Queue
	Topic   string
	Gate    *sync.Mutex
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewSubmissionService(ledger repository.LedgerRepositoryInterface, q queue.Queue, gate *sync.Mutex, logger *zap.Logger, m *metrics.Metrics) *SubmissionService {
	if gate == nil {
		gate = &sync.Mutex{}
	}
	return &SubmissionService{
		Ledger:  ledger,
		Queue:   q,
		Topic:   queue.TopicLedgerSync,
		Gate:    gate,
		Logger:  logging.OrNop(logger),
		Metrics: m,
	}
}

// Submit validates a new entrant, rejects duplicates by email or phone and
// appends the record.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (res *Result, err error) {
	defer func() { s.Metrics.RecordSubmission("submit", outcome(err)) }()

	rec := model.CustomerRecord{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	}
	if rec.Name == "" || rec.Email == "" || rec.Phone == "" {
		s.Logger.Info("submission rejected: missing required fields")
		return nil, appErrors.NewValidationError(msgMissingFields)
	}
	if !encodable(rec.Name, rec.Email) {
		s.Logger.Info("submission rejected: field cannot be stored")
		return nil, appErrors.NewValidationError(msgUnsupportedField)
	}
	if !phonePattern.MatchString(rec.Phone) {
		s.Logger.Info("submission rejected: invalid phone number")
		return nil, appErrors.NewValidationError(msgInvalidPhone)
	}

	if err := s.appendRecord(rec); err != nil {
		return nil, err
	}

	s.Logger.Info("customer saved", zap.String("name", rec.Name))
	s.requestSync(ctx, "submit")
	return &Result{Name: rec.Name}, nil
}

func (s *SubmissionService) appendRecord(rec model.CustomerRecord) error {
	s.Gate.Lock()
	defer s.Gate.Unlock()

	l := s.Ledger.Load()
	if field := lookup.FindConflict(l, rec.Email, rec.Phone); field != lookup.ConflictNone {
		s.Logger.Info("submission rejected: duplicate entrant", zap.String("field", string(field)))
		return appErrors.NewConflictError(string(field))
	}

	l.Append(rec)
	return s.Ledger.Save(l)
}

// SubmitOffer stores the offer against the first row with the same name, or
// appends an offer-only row when the name is unknown.
func (s *SubmissionService) SubmitOffer(ctx context.Context, req OfferRequest) (res *Result, err error) {
	defer func() { s.Metrics.RecordSubmission("offer", outcome(err)) }()

	name := strings.TrimSpace(req.Name)
	offer := strings.TrimSpace(req.Offer)
	if name == "" || offer == "" {
		s.Logger.Info("offer rejected: missing name or offer")
		return nil, appErrors.NewValidationError(msgMissingOffer)
	}
	if !encodable(name, offer) {
		s.Logger.Info("offer rejected: field cannot be stored")
		return nil, appErrors.NewValidationError(msgUnsupportedField)
	}

	updated, err := s.setOffer(name, offer)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("offer saved", zap.String("name", name), zap.Bool("updated_existing", updated))
	s.requestSync(ctx, "offer")
	return &Result{Name: name, Offer: offer}, nil
}

func (s *SubmissionService) setOffer(name, offer string) (bool, error) {
	s.Gate.Lock()
	defer s.Gate.Unlock()

	l := s.Ledger.Load()
	l.UpgradeHeader()

	idx := lookup.FindRowIndexByName(l, name)
	if idx >= 0 {
		l.Rows[idx].Offer = offer
	} else {
		l.Append(model.CustomerRecord{Name: name, Offer: offer})
	}
	return idx >= 0, s.Ledger.Save(l)
}

// ExportDataset returns the encoded ledger. It waits for any write in
// progress so a half-written ledger is never handed out.
func (s *SubmissionService) ExportDataset(ctx context.Context) ([]byte, error) {
	s.Gate.Lock()
	defer s.Gate.Unlock()
	return s.Ledger.ReadRaw()
}

// requestSync asks for a replica push. Failure here never fails the request.
func (s *SubmissionService) requestSync(_ context.Context, reason string) {
	if s.Queue == nil {
		return
	}
	job := queue.SyncJob{Reason: reason, RequestedAt: time.Now().UTC()}
	if err := s.Queue.Publish(s.Topic, job); err != nil {
		s.Logger.Warn("failed to request replica sync", zap.String("reason", reason), zap.Error(err))
	}
}

func encodable(fields ...string) bool {
	for _, f := range fields {
		if !codec.Encodable(f) {
			return false
		}
	}
	return true
}

func outcome(err error) string {
	var (
		ve *appErrors.ValidationError
		ce *appErrors.ConflictError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ce):
		return "conflict"
	default:
		return "error"
	}
}
