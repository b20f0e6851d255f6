package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SundayYogurt/ims_service/internal/db"
	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/SundayYogurt/ims_service/pkg/cardtoken"
	"github.com/SundayYogurt/ims_service/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "verify-secret-for-tests"

var immigration = dto.Caller{UserID: 1, Email: "officer@immigration.example", Role: domain.RoleImmigration}

// recordingProducer keeps every published event in memory.
type recordingProducer struct {
	mu     sync.Mutex
	events []dto.CardEvent
}

func (p *recordingProducer) PublishMessage(key, value []byte) error {
	var ev dto.CardEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type failingVerificationRepo struct{}

func (failingVerificationRepo) Create(context.Context, *domain.VerificationRequest) error {
	return errors.New("audit table unavailable")
}

func (failingVerificationRepo) List(context.Context, repository.VerificationFilter) ([]domain.VerificationRequest, error) {
	return nil, errors.New("audit table unavailable")
}

type testEnv struct {
	db       *gorm.DB
	now      time.Time
	signer   *cardtoken.Signer
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	producer *recordingProducer

	cards         repository.CardRepository
	ledger        repository.LedgerRepository
	students      repository.StudentRepository
	institutions  repository.InstitutionRepository
	verifications repository.VerificationRepository

	tokens    services.TokenService
	lifecycle services.CardService
	audit     services.AuditService
	verifier  services.VerifyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	env := &testEnv{
		db:       gdb,
		now:      time.Now(),
		registry: prometheus.NewRegistry(),
		producer: &recordingProducer{},
	}
	env.metrics = metrics.New(env.registry)

	env.signer, err = cardtoken.New(testSecret, cardtoken.WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)

	log := logger.Discard()
	env.cards = repository.NewCardRepository(gdb)
	env.ledger = repository.NewLedgerRepository(gdb)
	env.students = repository.NewStudentRepository(gdb)
	env.institutions = repository.NewInstitutionRepository(gdb)
	env.verifications = repository.NewVerificationRepository(gdb)

	env.tokens = services.NewTokenService(env.cards, env.signer, services.TokenServiceConfig{EnforceOwnership: true}, env.metrics, log)
	env.lifecycle = services.NewCardService(env.cards, env.ledger, env.students, env.producer, env.metrics, log)
	env.audit = services.NewAuditService(env.verifications, env.metrics, log)
	env.verifier = services.NewVerifyService(env.cards, env.ledger, env.audit, env.signer, env.producer, env.metrics, log)
	return env
}

func (e *testEnv) seedInstitution(t *testing.T, name string) *domain.Institution {
	t.Helper()
	inst := &domain.Institution{Name: name, InstitutionType: domain.InstitutionUniversity}
	require.NoError(t, e.institutions.Create(context.Background(), inst))
	return inst
}

func (e *testEnv) seedStudent(t *testing.T, inst *domain.Institution, withVisa bool) *domain.Student {
	t.Helper()
	passport := "P" + uuid.NewString()[:8]
	student := &domain.Student{
		InstitutionID:   inst.ID,
		StudentIDNumber: "S-" + uuid.NewString()[:6],
		FullName:        "Anan Sukjai",
		Nationality:     "Laos",
		PassportNumber:  &passport,
		DateOfBirth:     time.Date(2001, 4, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.students.Create(context.Background(), student))

	if withVisa {
		require.NoError(t, e.students.AddVisa(context.Background(), &domain.Visa{
			StudentID: student.ID,
			VisaType:  "ED",
			StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2027, 5, 31, 0, 0, 0, 0, time.UTC),
			Status:    domain.VisaActive,
		}))
	}
	return student
}

// seedCard registers an institution, a student with a visa and an
// active card.
func (e *testEnv) seedCard(t *testing.T) (*domain.Institution, *domain.Student, *dto.CardResponse) {
	t.Helper()
	inst := e.seedInstitution(t, "Chiang Mai University")
	student := e.seedStudent(t, inst, true)
	card, err := e.lifecycle.IssueCard(context.Background(), immigration, dto.IssueCardRequest{StudentID: student.ID})
	require.NoError(t, err)
	return inst, student, card
}

func (e *testEnv) mint(t *testing.T, cardID string) string {
	t.Helper()
	res, err := e.tokens.MintCardToken(context.Background(), immigration, cardID)
	require.NoError(t, err)
	return res.Token
}

func (e *testEnv) auditRows(t *testing.T) []domain.VerificationRequest {
	t.Helper()
	var rows []domain.VerificationRequest
	require.NoError(t, e.db.Order("id ASC").Find(&rows).Error)
	return rows
}

func institutionCaller(inst *domain.Institution) dto.Caller {
	return dto.Caller{UserID: 2, Email: "registrar@uni.example", Role: domain.RoleInstitution, InstitutionID: inst.ID}
}
