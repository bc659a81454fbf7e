package repo

import (
	"context"
	"testing"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

func TestIsAdmin(t *testing.T) {
	db := newRepoDB(t, &domain.Admin{})
	ctx := context.Background()

	if err := db.Create(&domain.Admin{UserID: 42}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := IsAdmin(ctx, db, 42)
	if err != nil || !ok {
		t.Fatalf("expected admin, ok=%v err=%v", ok, err)
	}
	ok, err = IsAdmin(ctx, db, 7)
	if err != nil {
		t.Fatalf("non-admin lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected non-admin")
	}
}

func TestListAdmins(t *testing.T) {
	db := newRepoDB(t, &domain.Admin{})
	ctx := context.Background()

	for _, id := range []int64{5, 3} {
		if err := db.Create(&domain.Admin{UserID: id}).Error; err != nil {
			t.Fatalf("seed %d: %v", id, err)
		}
	}
	ids, err := ListAdmins(ctx, db)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 5 {
		t.Fatalf("unexpected admins: %v", ids)
	}
}
