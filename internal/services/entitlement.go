package services

import (
	"time"

	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// EntitlementService decides whether a user may view a course's paid
// content. It is pure and read-only: no store access, no error path. Partial
// or empty purchase data simply resolves to "no access".
type EntitlementService interface {
	HasAccess(course *types.Course, purchases []*types.Purchase) bool
}

type entitlementService struct {
	log *logger.Logger

	// graceWindow bounds how long a pending purchase still grants access
	// while the webhook confirmation is in flight. Abandoned checkouts age
	// out of it.
	graceWindow time.Duration
	now         func() time.Time
}

func NewEntitlementService(log *logger.Logger, graceWindow time.Duration) EntitlementService {
	return &entitlementService{
		log:         log.With("service", "EntitlementService"),
		graceWindow: graceWindow,
		now:         time.Now,
	}
}

func (s *entitlementService) HasAccess(course *types.Course, purchases []*types.Purchase) bool {
	if course == nil {
		return false
	}
	if course.IsFree() {
		return true
	}
	for _, p := range purchases {
		if p == nil || p.CourseID != course.ID {
			continue
		}
		if p.Settled() {
			return true
		}
		if p.Status == types.PurchaseStatusPending && s.now().Sub(p.PurchasedAt) <= s.graceWindow {
			return true
		}
	}
	return false
}
