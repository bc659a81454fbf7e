package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
)

func TestResolve_CachesMembershipAndReferrals(t *testing.T) {
	gw := newTestGateway(t)
	checker := &stubChecker{status: map[int64]string{7: platform.StatusMember}}
	svc := newTestEligibility(gw, checker, 2)
	ctx := context.Background()

	if err := gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, referred := range []int64{100, 101} {
			if _, err := repo.CreateReferral(ctx, tx, 7, referred); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := svc.Resolve(ctx, 7)
	if !st.IsMember || st.ReferralCount != 2 || st.IsAdmin {
		t.Fatalf("unexpected status: %+v", st)
	}
	if checker.calls != 1 {
		t.Fatalf("checker calls = %d, want 1", checker.calls)
	}

	// Second resolve must be served from cache.
	st = svc.Resolve(ctx, 7)
	if checker.calls != 1 {
		t.Fatalf("checker calls = %d, want cached hit", checker.calls)
	}
	if !st.IsMember || st.ReferralCount != 2 {
		t.Fatalf("cached status diverged: %+v", st)
	}
}

func TestResolve_MembershipFailureIsFailClosedAndUncached(t *testing.T) {
	gw := newTestGateway(t)
	checker := &stubChecker{err: errors.New("api down")}
	svc := newTestEligibility(gw, checker, 0)
	ctx := context.Background()

	st := svc.Resolve(ctx, 7)
	if st.IsMember {
		t.Fatal("degraded lookup must resolve as non-member")
	}
	if _, ok := svc.Members.Get(7); ok {
		t.Fatal("failure must not be cached")
	}

	// Once the API recovers the next resolve sees the truth immediately.
	checker.err = nil
	checker.status = map[int64]string{7: platform.StatusAdministrator}
	if st := svc.Resolve(ctx, 7); !st.IsMember {
		t.Fatal("recovered lookup should report membership")
	}
}

func TestResolve_AdminIsAlwaysFresh(t *testing.T) {
	gw := newTestGateway(t)
	svc := newTestEligibility(gw, &stubChecker{}, 0)
	ctx := context.Background()

	if st := svc.Resolve(ctx, 42); st.IsAdmin {
		t.Fatal("unexpected admin before grant")
	}
	if err := gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&domain.Admin{UserID: 42}).Error
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	// No invalidation needed: the grant is visible on the next resolve.
	if st := svc.Resolve(ctx, 42); !st.IsAdmin {
		t.Fatal("admin grant not visible on next resolve")
	}
}

func TestEligible(t *testing.T) {
	svc := &EligibilityService{SharesRequired: 2}

	cases := []struct {
		name string
		st   Status
		want bool
	}{
		{"non-member", Status{IsMember: false, ReferralCount: 5}, false},
		{"member below quota", Status{IsMember: true, ReferralCount: 1}, false},
		{"member at quota", Status{IsMember: true, ReferralCount: 2}, true},
		{"member above quota", Status{IsMember: true, ReferralCount: 3}, true},
	}
	for _, tc := range cases {
		if got := svc.Eligible(tc.st); got != tc.want {
			t.Errorf("%s: Eligible = %v, want %v", tc.name, got, tc.want)
		}
	}

	noQuota := &EligibilityService{SharesRequired: 0}
	if !noQuota.Eligible(Status{IsMember: true}) {
		t.Error("zero quota: any member should be eligible")
	}
}

func TestInvalidate_PopsBothNamespaces(t *testing.T) {
	svc := newTestEligibility(nil, &stubChecker{}, 0)
	svc.Members.Set(7, true)
	svc.Referrals.Set(7, 3)

	svc.Invalidate(7)
	if _, ok := svc.Members.Get(7); ok {
		t.Fatal("membership entry survived invalidation")
	}
	if _, ok := svc.Referrals.Get(7); ok {
		t.Fatal("referral entry survived invalidation")
	}
}
