package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/spec-kit/evaluation-service/internal/auth"
	"github.com/spec-kit/evaluation-service/internal/domain"
	"github.com/spec-kit/evaluation-service/internal/events"
	"github.com/spec-kit/evaluation-service/internal/observability"
	"github.com/spec-kit/evaluation-service/internal/repository"
	"github.com/spec-kit/evaluation-service/internal/service"
	apperrors "github.com/spec-kit/evaluation-service/pkg/util"
)

// fakeEvaluationRepo is an in-memory stand-in for the pgx repository. It
// mimics the store contract: pgx.ErrNoRows on absence, last-writer-wins
// updates, token always cleared by Update.
type fakeEvaluationRepo struct {
	mu          sync.Mutex
	records     map[string]*domain.Evaluation
	updateCalls int
	failUpdate  error
}

func newFakeEvaluationRepo() *fakeEvaluationRepo {
	return &fakeEvaluationRepo{records: map[string]*domain.Evaluation{}}
}

func (f *fakeEvaluationRepo) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.records[evaluation.ID]; exists {
		return apperrors.NewConflict("evaluation id already exists", nil)
	}
	evaluation.CreatedAt = time.Now()
	evaluation.UpdatedAt = evaluation.CreatedAt
	clone := *evaluation
	f.records[evaluation.ID] = &clone
	return nil
}

func (f *fakeEvaluationRepo) GetByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (f *fakeEvaluationRepo) List(ctx context.Context, filter repository.EvaluationFilter) ([]domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.Evaluation, 0, len(f.records))
	for _, record := range f.records {
		result = append(result, *record)
	}
	return result, nil
}

func (f *fakeEvaluationRepo) Update(ctx context.Context, id string, update repository.EvaluationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	record, ok := f.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	f.updateCalls++
	record.Status = update.Status
	record.ScoreService = update.ScoreService
	record.ScoreCompany = update.ScoreCompany
	record.RespondentIP = update.RespondentIP
	record.Notes = update.Notes
	record.IssueResolved = update.IssueResolved
	record.Token = nil
	record.UpdatedAt = time.Now()
	return nil
}

type eventCollector struct {
	mu   sync.Mutex
	seen []events.EventType
}

func newEventCollector(dispatcher events.Dispatcher) *eventCollector {
	collector := &eventCollector{}
	handler := func(ctx context.Context, event events.Event) error {
		collector.mu.Lock()
		defer collector.mu.Unlock()
		collector.seen = append(collector.seen, event.Type)
		return nil
	}
	dispatcher.Subscribe(events.EventEvaluationCreated, handler)
	dispatcher.Subscribe(events.EventEvaluationEvaluated, handler)
	dispatcher.Subscribe(events.EventEvaluationExpired, handler)
	return collector
}

func (c *eventCollector) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.EventType{}, c.seen...)
}

func newService(repo repository.EvaluationRepository, ttl time.Duration) (*service.EvaluationService, *eventCollector) {
	dispatcher := events.NewInMemoryDispatcher()
	collector := newEventCollector(dispatcher)
	svc := service.NewEvaluationService(service.EvaluationDependencies{
		EvaluationRepo: repo,
		TokenManager:   auth.NewTokenManager("test-secret", ttl),
		Dispatcher:     dispatcher,
		Metrics:        observability.NewMetrics(),
		Logger:         zap.NewNop(),
		MaxNoteLength:  100,
	})
	return svc, collector
}

func TestEvaluationLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a lifecycle service with a fresh token TTL", t, func() {
		repo := newFakeEvaluationRepo()
		svc, collector := newService(repo, time.Minute)

		Convey("When creating an evaluation", func() {
			created, err := svc.Create(ctx, service.CreateEvaluationInput{
				AttendantName: "RAFAEL",
				CompanyName:   "SUPER INTERNET",
				TicketRef:     "protocolo321",
				OriginIP:      "192.168.0.1",
			})

			Convey("Then the record is pending with a token attached", func() {
				So(err, ShouldBeNil)
				So(created.ID, ShouldNotBeEmpty)
				So(created.Status, ShouldEqual, domain.EvaluationStatusPending)
				So(created.Token, ShouldNotBeNil)
				So(collector.types(), ShouldContain, events.EventEvaluationCreated)
			})

			Convey("And validating immediately returns the creation claims without mutation", func() {
				claims, err := svc.Validate(ctx, created.ID)
				So(err, ShouldBeNil)
				So(claims.EvaluationID, ShouldEqual, created.ID)
				So(claims.AttendantName, ShouldEqual, "RAFAEL")
				So(claims.CompanyName, ShouldEqual, "SUPER INTERNET")
				So(claims.TicketRef, ShouldEqual, "protocolo321")

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusPending)
				So(stored.Token, ShouldNotBeNil)
				So(repo.updateCalls, ShouldEqual, 0)
			})

			Convey("And a respondent from another address can submit exactly once", func() {
				err := svc.Update(ctx, created.ID, service.UpdateEvaluationInput{
					RespondentIP:  "2.3.4.5",
					ScoreService:  5,
					ScoreCompany:  5,
					Notes:         "Legal",
					IssueResolved: true,
				})
				So(err, ShouldBeNil)

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusEvaluated)
				So(stored.Token, ShouldBeNil)
				So(*stored.ScoreService, ShouldEqual, 5)
				So(*stored.ScoreCompany, ShouldEqual, 5)
				So(*stored.Notes, ShouldEqual, "Legal")
				So(*stored.RespondentIP, ShouldEqual, "2.3.4.5")
				So(collector.types(), ShouldContain, events.EventEvaluationEvaluated)

				Convey("And a second submission fails as already evaluated", func() {
					err := svc.Update(ctx, created.ID, service.UpdateEvaluationInput{
						RespondentIP: "6.7.8.9",
						ScoreService: 3,
						ScoreCompany: 3,
					})
					So(apperrors.HasCode(err, "ALREADY_EVALUATED"), ShouldBeTrue)
				})

				Convey("And validating afterwards fails as already evaluated", func() {
					_, err := svc.Validate(ctx, created.ID)
					So(apperrors.HasCode(err, "ALREADY_EVALUATED"), ShouldBeTrue)
				})
			})

			Convey("And a submission from the originating address is forbidden", func() {
				err := svc.Update(ctx, created.ID, service.UpdateEvaluationInput{
					RespondentIP: "192.168.0.1",
					ScoreService: 4,
					ScoreCompany: 4,
				})
				So(apperrors.HasCode(err, "SAME_ORIGIN_FORBIDDEN"), ShouldBeTrue)

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusPending)
			})

			Convey("And a tampered stored token fails as invalid without mutation", func() {
				repo.mu.Lock()
				bad := "tampered"
				repo.records[created.ID].Token = &bad
				repo.mu.Unlock()

				_, err := svc.Validate(ctx, created.ID)
				So(apperrors.HasCode(err, "TOKEN_INVALID"), ShouldBeTrue)

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusPending)
			})
		})

		Convey("When creating with missing attributes", func() {
			_, err := svc.Create(ctx, service.CreateEvaluationInput{AttendantName: "RAFAEL"})

			Convey("Then it fails validation", func() {
				So(apperrors.HasCode(err, "VALIDATION_FAILED"), ShouldBeTrue)
			})
		})

		Convey("When validating an unknown id", func() {
			_, err := svc.Validate(ctx, "missing")

			Convey("Then it fails not found", func() {
				So(apperrors.HasCode(err, "NOT_FOUND"), ShouldBeTrue)
			})
		})

		Convey("When submitting out-of-range scores", func() {
			err := svc.Update(ctx, "missing", service.UpdateEvaluationInput{
				RespondentIP: "2.3.4.5",
				ScoreService: 0,
				ScoreCompany: 6,
			})

			Convey("Then validation fails before any lookup", func() {
				So(apperrors.HasCode(err, "VALIDATION_FAILED"), ShouldBeTrue)
			})
		})

		Convey("When submitting oversized notes", func() {
			notes := make([]byte, 101)
			for i := range notes {
				notes[i] = 'a'
			}
			err := svc.Update(ctx, "missing", service.UpdateEvaluationInput{
				RespondentIP: "2.3.4.5",
				ScoreService: 3,
				ScoreCompany: 3,
				Notes:        string(notes),
			})

			Convey("Then validation fails", func() {
				So(apperrors.HasCode(err, "VALIDATION_FAILED"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a lifecycle service whose tokens are already expired", t, func() {
		repo := newFakeEvaluationRepo()
		svc, collector := newService(repo, -time.Minute)

		created, err := svc.Create(ctx, service.CreateEvaluationInput{
			AttendantName: "RAFAEL",
			CompanyName:   "SUPER INTERNET",
			TicketRef:     "protocolo321",
			OriginIP:      "10.0.0.1",
		})
		So(err, ShouldBeNil)

		Convey("When validating after the TTL has elapsed", func() {
			_, err := svc.Validate(ctx, created.ID)

			Convey("Then the record lazily transitions to expired exactly once", func() {
				So(apperrors.HasCode(err, "TOKEN_EXPIRED"), ShouldBeTrue)

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusExpired)
				So(stored.Token, ShouldBeNil)
				So(repo.updateCalls, ShouldEqual, 1)
				So(collector.types(), ShouldContain, events.EventEvaluationExpired)
			})

			Convey("And subsequent validate and update calls fail without re-writing", func() {
				_, err := svc.Validate(ctx, created.ID)
				So(apperrors.HasCode(err, "TOKEN_EXPIRED"), ShouldBeTrue)

				err = svc.Update(ctx, created.ID, service.UpdateEvaluationInput{
					RespondentIP: "2.3.4.5",
					ScoreService: 5,
					ScoreCompany: 5,
				})
				So(apperrors.HasCode(err, "TOKEN_EXPIRED"), ShouldBeTrue)
				So(repo.updateCalls, ShouldEqual, 1)
			})
		})

		Convey("When the lazy expiry write cannot be persisted", func() {
			repo.failUpdate = errors.New("connection refused")
			_, err := svc.Validate(ctx, created.ID)

			Convey("Then the failure surfaces as store unavailability, not expiry", func() {
				So(apperrors.HasCode(err, "STORE_UNAVAILABLE"), ShouldBeTrue)
			})
		})

		Convey("When the originating address submits despite the expired token", func() {
			err := svc.Update(ctx, created.ID, service.UpdateEvaluationInput{
				RespondentIP: "10.0.0.1",
				ScoreService: 4,
				ScoreCompany: 4,
			})

			Convey("Then same-origin rejection wins regardless of token state", func() {
				So(apperrors.HasCode(err, "SAME_ORIGIN_FORBIDDEN"), ShouldBeTrue)

				stored, _ := repo.GetByID(ctx, created.ID)
				So(stored.Status, ShouldEqual, domain.EvaluationStatusPending)
			})
		})
	})
}
