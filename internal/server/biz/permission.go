package biz

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/storage"
)

// PermissionService validates permission hierarchies: who may grant which
// permissions to whom.
type PermissionService struct {
	store *storage.Store
}

type PermissionServiceParams struct {
	fx.In

	Store *storage.Store
}

func NewPermissionService(params PermissionServiceParams) *PermissionService {
	return &PermissionService{store: params.Store}
}

// CanGrantPermissions checks if the current user can grant the specified
// permissions. Users can only grant permissions they hold themselves,
// unless they are superusers.
func (s *PermissionService) CanGrantPermissions(ctx context.Context, permsToGrant []string) error {
	currentUser, ok := contexts.GetUser(ctx)
	if !ok || currentUser == nil {
		return fmt.Errorf("user not found in context")
	}

	if currentUser.IsSuperuser {
		return nil
	}

	held := currentUser.AllPermissions()

	for _, perm := range permsToGrant {
		if !lo.Contains(held, perm) {
			return &InsufficientPermissionsError{
				Reason: fmt.Sprintf("cannot grant permission %q that you don't hold", perm),
			}
		}
	}

	return nil
}

// SetUserPermissions replaces the target user's direct permission groups,
// after checking that the current user may edit the target and may grant
// every requested group.
func (s *PermissionService) SetUserPermissions(ctx context.Context, targetID int64, permissions []string) (*storage.User, error) {
	target, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.CanEditUser(ctx, target); err != nil {
		return nil, err
	}

	if err := s.CanGrantPermissions(ctx, permissions); err != nil {
		return nil, err
	}

	if err := s.store.UpdateUserPermissions(ctx, targetID, permissions); err != nil {
		return nil, err
	}

	return s.store.GetUserByID(ctx, targetID)
}

// CanEditUser checks if the current user can edit another user's
// permissions. Editing a superuser requires being a superuser; otherwise
// the target's permissions must be a subset of the current user's.
func (s *PermissionService) CanEditUser(ctx context.Context, target *storage.User) error {
	currentUser, ok := contexts.GetUser(ctx)
	if !ok || currentUser == nil {
		return fmt.Errorf("user not found in context")
	}

	if currentUser.IsSuperuser {
		return nil
	}

	if target.IsSuperuser {
		return &InsufficientPermissionsError{Reason: "cannot edit superuser accounts"}
	}

	held := currentUser.AllPermissions()

	for _, perm := range target.AllPermissions() {
		if !lo.Contains(held, perm) {
			return &InsufficientPermissionsError{
				Reason: fmt.Sprintf("target user holds permission %q that you don't", perm),
			}
		}
	}

	return nil
}
