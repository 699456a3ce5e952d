package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

func newCheckoutService(t *testing.T, db *gorm.DB) CheckoutService {
	t.Helper()
	log := logger.NewNop()
	userRepo := repos.NewUserRepo(db, log)
	accounts := NewAccountService(db, log, userRepo)
	purchases := NewPurchaseService(db, log, userRepo, repos.NewCourseRepo(db, log), repos.NewPurchaseRepo(db, log))
	return NewCheckoutService(log, accounts, purchases)
}

func TestOnPaymentConfirmedProvisionsGuestBuyer(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 4900)
	svc := newCheckoutService(t, db)

	got, err := svc.OnPaymentConfirmed(context.Background(), PaymentEvent{
		SessionID:   "cs_guest_001",
		PayerEmail:  "Guest@Example.com",
		AmountCents: 4900,
		CourseID:    course.ID,
		Finalized:   true,
	})
	if err != nil {
		t.Fatalf("OnPaymentConfirmed: %v", err)
	}
	if !got.IsNewUser || !got.IsNewPurchase {
		t.Fatalf("expected new user and new purchase: %+v", got)
	}
	if got.TempPassword == "" {
		t.Fatal("provisioned buyer must receive a temporary credential")
	}
	if got.UserEmail != "guest@example.com" {
		t.Fatalf("email=%q", got.UserEmail)
	}

	var user types.User
	if err := db.First(&user, "id = ?", got.UserID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.ProvisionedViaPayment || !user.MustResetPassword {
		t.Fatalf("provisioning flags not set: %+v", user)
	}
}

func TestOnPaymentConfirmedRedelivery(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 4900)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	event := PaymentEvent{
		SessionID:   "cs_guest_dup",
		PayerEmail:  "guest@example.com",
		AmountCents: 4900,
		CourseID:    course.ID,
		Finalized:   true,
	}
	first, err := svc.OnPaymentConfirmed(ctx, event)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := svc.OnPaymentConfirmed(ctx, event)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second.IsNewUser || second.IsNewPurchase {
		t.Fatalf("redelivery created new rows: %+v", second)
	}
	if second.UserID != first.UserID || second.PurchaseID != first.PurchaseID {
		t.Fatalf("redelivery did not converge: first=%+v second=%+v", first, second)
	}
	if second.TempPassword != "" {
		t.Fatal("redelivery must not re-issue a credential")
	}
}

func TestOnPaymentConfirmedKnownUserSkipsProvisioning(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	course, _ := seedCourse(t, db, 4900)
	svc := newCheckoutService(t, db)

	got, err := svc.OnPaymentConfirmed(context.Background(), PaymentEvent{
		SessionID:   "cs_member_001",
		PayerEmail:  "unrelated@example.com",
		AmountCents: 4900,
		UserID:      &user.ID,
		CourseID:    course.ID,
		Finalized:   true,
	})
	if err != nil {
		t.Fatalf("OnPaymentConfirmed: %v", err)
	}
	if got.IsNewUser || got.TempPassword != "" {
		t.Fatalf("metadata user id must bypass provisioning: %+v", got)
	}
	if got.UserID != user.ID {
		t.Fatalf("user=%s, want %s", got.UserID, user.ID)
	}

	var count int64
	if err := db.Model(&types.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("user rows=%d, want 1", count)
	}
}

func TestOnPaymentConfirmedInvalidEvents(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 4900)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		event PaymentEvent
	}{
		{"missing_session", PaymentEvent{PayerEmail: "a@b.c", CourseID: course.ID}},
		{"missing_course", PaymentEvent{SessionID: "cs", PayerEmail: "a@b.c"}},
		{"no_user_no_email", PaymentEvent{SessionID: "cs", CourseID: course.ID}},
		{"nil_uuid_user_no_email", PaymentEvent{SessionID: "cs", CourseID: course.ID, UserID: &uuid.Nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.OnPaymentConfirmed(ctx, tc.event)
			if err == nil {
				t.Fatal("expected an error")
			}
			if apierr.CodeOf(err) != apierr.CodeInvalid {
				t.Fatalf("code=%q, want invalid", apierr.CodeOf(err))
			}
		})
	}
}
