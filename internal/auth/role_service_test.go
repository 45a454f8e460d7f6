package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/area-core/internal/entity"
)

func TestRoleService(t *testing.T) {
	db := testDB(t)
	roles := NewRoleRepository(db)
	guard := NewGuard(roles, GuardConfig{CacheSize: 8, CacheTTL: time.Minute}, quietLogger())
	svc := NewRoleService(roles, guard)

	admin := seedTestUser(t, db, "admin", true)
	member := seedTestUser(t, db, "member", false)
	adminCtx := WithPrincipal(context.Background(), admin.Principal())
	memberCtx := WithPrincipal(context.Background(), member.Principal())

	if _, err := svc.List(memberCtx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("List() as plain user = %v, want ErrUnauthorized", err)
	}

	role := &Role{Name: "area-editors"}
	if err := svc.Create(adminCtx, role); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var dup *entity.DuplicateError
	if err := svc.Create(adminCtx, &Role{Name: "area-editors"}); !errors.As(err, &dup) {
		t.Errorf("Create(duplicate) = %v, want DuplicateError", err)
	}

	// Prime the member's cached snapshot before they join the role.
	if err := guard.Authorize(memberCtx, ResourceArea, ActionUpdate); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("member should start without rights, got %v", err)
	}

	if _, err := svc.Grant(adminCtx, role.ID, ResourceArea, []string{"update"}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if err := svc.AssignMember(adminCtx, role.ID, member.ID); err != nil {
		t.Fatalf("AssignMember() error = %v", err)
	}
	if err := guard.Authorize(memberCtx, ResourceArea, ActionUpdate); err != nil {
		t.Errorf("after assignment Authorize() = %v", err)
	}

	mask, err := svc.Revoke(adminCtx, role.ID, ResourceArea, []string{"update"})
	if err != nil || mask != 0 {
		t.Fatalf("Revoke() = %d, %v", mask, err)
	}
	if err := guard.Authorize(memberCtx, ResourceArea, ActionUpdate); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("after revoke Authorize() = %v", err)
	}

	if err := svc.RemoveMember(adminCtx, role.ID, member.ID); err != nil {
		t.Errorf("RemoveMember() error = %v", err)
	}
	if err := svc.Delete(adminCtx, role.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestRoleService_ListPaginated(t *testing.T) {
	db := testDB(t)
	roles := NewRoleRepository(db)
	svc := NewRoleService(roles, NewGuard(roles, GuardConfig{}, quietLogger()))
	admin := seedTestUser(t, db, "admin", true)
	member := seedTestUser(t, db, "member", false)
	adminCtx := WithPrincipal(context.Background(), admin.Principal())

	for _, name := range []string{"a", "b", "c"} {
		if err := svc.Create(adminCtx, &Role{Name: name}); err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
	}

	page, err := svc.ListPaginated(adminCtx, entity.PageRequest{Delta: 2, Page: 2})
	if err != nil {
		t.Fatalf("ListPaginated() error = %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].Name != "c" || page.NumPages != 2 || page.NextPage != 1 {
		t.Errorf("page 2 = %+v", page)
	}

	page, err = svc.ListPaginated(adminCtx, entity.PageRequest{Delta: 1 << 62, Page: 1 << 40})
	if err != nil {
		t.Fatalf("ListPaginated(huge) error = %v", err)
	}
	if len(page.Results) != 0 || page.Delta != entity.MaxDelta {
		t.Errorf("huge request = %+v", page)
	}

	memberCtx := WithPrincipal(context.Background(), member.Principal())
	if _, err := svc.ListPaginated(memberCtx, entity.PageRequest{}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("ListPaginated() as plain user = %v, want ErrUnauthorized", err)
	}
}

func TestRoleService_GrantValidation(t *testing.T) {
	db := testDB(t)
	roles := NewRoleRepository(db)
	svc := NewRoleService(roles, NewGuard(roles, GuardConfig{}, quietLogger()))
	ctx := WithPrincipal(context.Background(), Principal{UserID: 1, Admin: true})

	tests := []struct {
		name     string
		resource ResourceType
		actions  []string
	}{
		{"unknown resource", ResourceType("Dashboard"), []string{"find"}},
		{"unknown action", ResourceProject, []string{"area_device_manager"}},
		{"no actions", ResourceArea, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *entity.ValidationError
			if _, err := svc.Grant(ctx, 1, tt.resource, tt.actions); !errors.As(err, &ve) {
				t.Errorf("Grant() = %v, want ValidationError", err)
			}
		})
	}
}
