package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

func newPurchaseService(t *testing.T, db *gorm.DB) PurchaseService {
	t.Helper()
	log := logger.NewNop()
	return NewPurchaseService(db,
		log,
		repos.NewUserRepo(db, log),
		repos.NewCourseRepo(db, log),
		repos.NewPurchaseRepo(db, log),
	)
}

func basicReconcileInput(userID, courseID uuid.UUID, session string) ReconcileInput {
	paymentID := "pi_" + session
	return ReconcileInput{
		UserID:           userID,
		CourseID:         courseID,
		SessionID:        session,
		PaymentID:        &paymentID,
		AmountCents:      4900,
		PaymentFinalized: true,
	}
}

func TestReconcilePurchaseCreatesOnce(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	in := basicReconcileInput(user.ID, course.ID, "cs_test_001")
	first, err := svc.ReconcilePurchase(ctx, in)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if !first.IsNewPurchase {
		t.Fatal("first delivery should create the purchase")
	}
	if first.UserEmail != "buyer@example.com" {
		t.Fatalf("user email=%q", first.UserEmail)
	}

	var row types.Purchase
	if err := db.Where("stripe_session_id = ?", "cs_test_001").First(&row).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if row.Status != types.PurchaseStatusCompleted {
		t.Fatalf("status=%q, want completed", row.Status)
	}
	if row.AmountCents != 4900 {
		t.Fatalf("amount=%d", row.AmountCents)
	}
}

func TestReconcilePurchaseIdempotentUnderRedelivery(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	in := basicReconcileInput(user.ID, course.ID, "cs_test_dup")
	first, err := svc.ReconcilePurchase(ctx, in)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// N redeliveries of the same session must all resolve to the same row.
	for i := 0; i < 4; i++ {
		again, err := svc.ReconcilePurchase(ctx, in)
		if err != nil {
			t.Fatalf("redelivery %d: %v", i, err)
		}
		if again.IsNewPurchase {
			t.Fatalf("redelivery %d reported a new purchase", i)
		}
		if again.PurchaseID != first.PurchaseID {
			t.Fatalf("redelivery %d resolved to %s, want %s", i, again.PurchaseID, first.PurchaseID)
		}
	}

	var count int64
	if err := db.Model(&types.Purchase{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("purchase rows=%d, want 1", count)
	}
}

func TestReconcilePurchaseRedeliveryDoesNotOverwrite(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	in := basicReconcileInput(user.ID, course.ID, "cs_test_immutable")
	first, err := svc.ReconcilePurchase(ctx, in)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// Same session, different amount: the stored record wins.
	mutated := in
	mutated.AmountCents = 100
	again, err := svc.ReconcilePurchase(ctx, mutated)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if again.PurchaseID != first.PurchaseID || again.IsNewPurchase {
		t.Fatalf("redelivery result mismatch: %+v", again)
	}

	var row types.Purchase
	if err := db.First(&row, "id = ?", first.PurchaseID).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if row.AmountCents != 4900 {
		t.Fatalf("amount overwritten to %d", row.AmountCents)
	}
}

func TestReconcilePurchaseAdoptsEnrollmentPlaceholder(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	// A local enrollment placeholder created before the webhook arrived.
	placeholder := &types.Purchase{
		ID:              uuid.New(),
		UserID:          user.ID,
		CourseID:        course.ID,
		StripeSessionID: "local_" + uuid.NewString(),
		Status:          types.PurchaseStatusPending,
		PurchasedAt:     time.Now().Add(-10 * time.Minute),
	}
	if err := db.Create(placeholder).Error; err != nil {
		t.Fatalf("seed placeholder: %v", err)
	}

	in := basicReconcileInput(user.ID, course.ID, "cs_test_late")
	got, err := svc.ReconcilePurchase(ctx, in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got.IsNewPurchase {
		t.Fatal("placeholder adoption must not report a new purchase")
	}
	if got.PurchaseID != placeholder.ID {
		t.Fatalf("adopted %s, want placeholder %s", got.PurchaseID, placeholder.ID)
	}

	var row types.Purchase
	if err := db.First(&row, "id = ?", placeholder.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if row.StripeSessionID != "cs_test_late" {
		t.Fatalf("session ref not attached: %q", row.StripeSessionID)
	}
	if row.Status != types.PurchaseStatusCompleted {
		t.Fatalf("status=%q, want completed", row.Status)
	}
	if row.AmountCents != 4900 {
		t.Fatalf("amount=%d", row.AmountCents)
	}
}

func TestReconcilePurchaseFailedPurchaseDoesNotBlockRepurchase(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	failed := &types.Purchase{
		ID:              uuid.New(),
		UserID:          user.ID,
		CourseID:        course.ID,
		StripeSessionID: "cs_test_failed",
		Status:          types.PurchaseStatusFailed,
		PurchasedAt:     time.Now().Add(-time.Hour),
	}
	if err := db.Create(failed).Error; err != nil {
		t.Fatalf("seed failed purchase: %v", err)
	}

	got, err := svc.ReconcilePurchase(ctx, basicReconcileInput(user.ID, course.ID, "cs_test_retry"))
	if err != nil {
		t.Fatalf("reconcile after failure: %v", err)
	}
	if !got.IsNewPurchase {
		t.Fatal("a failed purchase must not absorb the new session")
	}
	if got.PurchaseID == failed.ID {
		t.Fatal("reconciler reused the failed purchase row")
	}
}

// racingPurchaseRepo simulates a concurrent delivery committing between the
// lookups and the insert: the first round of lookups misses, the insert
// takes a duplicate key, and the recovery lookup sees the winner.
type racingPurchaseRepo struct {
	repos.PurchaseRepo
	sessionMisses int
	pairMisses    int
}

func (r *racingPurchaseRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Purchase, error) {
	if r.sessionMisses > 0 {
		r.sessionMisses--
		return nil, nil
	}
	return r.PurchaseRepo.GetBySessionID(ctx, tx, sessionID)
}

func (r *racingPurchaseRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Purchase, error) {
	if r.pairMisses > 0 {
		r.pairMisses--
		return nil, nil
	}
	return r.PurchaseRepo.GetByUserAndCourse(ctx, tx, userID, courseID)
}

func (r *racingPurchaseRepo) Create(ctx context.Context, tx *gorm.DB, purchase *types.Purchase) error {
	return gorm.ErrDuplicatedKey
}

func TestReconcilePurchaseInsertRaceResolvesToWinner(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	log := logger.NewNop()

	winner := &types.Purchase{
		ID:              uuid.New(),
		UserID:          user.ID,
		CourseID:        course.ID,
		StripeSessionID: "cs_test_race",
		AmountCents:     4900,
		Status:          types.PurchaseStatusCompleted,
		PurchasedAt:     time.Now(),
	}
	if err := db.Create(winner).Error; err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	repo := &racingPurchaseRepo{
		PurchaseRepo:  repos.NewPurchaseRepo(db, log),
		sessionMisses: 1,
		pairMisses:    1,
	}
	svc := NewPurchaseService(db, log, repos.NewUserRepo(db, log), repos.NewCourseRepo(db, log), repo)

	got, err := svc.ReconcilePurchase(context.Background(), basicReconcileInput(user.ID, course.ID, "cs_test_race"))
	if err != nil {
		t.Fatalf("race loser must resolve, got: %v", err)
	}
	if got.IsNewPurchase {
		t.Fatal("race loser reported a new purchase")
	}
	if got.PurchaseID != winner.ID {
		t.Fatalf("resolved %s, want winner %s", got.PurchaseID, winner.ID)
	}
}

func TestReconcilePurchaseUnknownReferences(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ReconcileInput
	}{
		{"unknown_user", basicReconcileInput(uuid.New(), course.ID, "cs_u")},
		{"unknown_course", basicReconcileInput(user.ID, uuid.New(), "cs_c")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ReconcilePurchase(ctx, tc.in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if apierr.CodeOf(err) != apierr.CodeNotFound {
				t.Fatalf("code=%q, want not_found", apierr.CodeOf(err))
			}
		})
	}
}

func TestReconcilePurchaseInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := newPurchaseService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ReconcileInput
	}{
		{"missing_session", ReconcileInput{UserID: uuid.New(), CourseID: uuid.New(), AmountCents: 100}},
		{"negative_amount", ReconcileInput{UserID: uuid.New(), CourseID: uuid.New(), SessionID: "cs", AmountCents: -1}},
		{"missing_ids", ReconcileInput{SessionID: "cs", AmountCents: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ReconcilePurchase(ctx, tc.in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if apierr.CodeOf(err) != apierr.CodeInvalid {
				t.Fatalf("code=%q, want invalid", apierr.CodeOf(err))
			}
		})
	}
}

func TestReconcilePurchaseNonFinalizedRecordsPending(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newPurchaseService(t, db)

	in := basicReconcileInput(user.ID, course.ID, "cs_test_pending")
	in.PaymentFinalized = false
	got, err := svc.ReconcilePurchase(context.Background(), in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var row types.Purchase
	if err := db.First(&row, "id = ?", got.PurchaseID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if row.Status != types.PurchaseStatusPending {
		t.Fatalf("status=%q, want pending", row.Status)
	}
}
