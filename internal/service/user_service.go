package service

import (
	"context"
	"log/slog"

	"socialfeed/internal/identity"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/validation"
)

// RegisterUser creates the local profile for the caller's identity.
func (s *FeedService) RegisterUser(ctx context.Context, caller *identity.Caller, username, email string) (user *models.User, err error) {
	ctx, done := s.observe(ctx, "registerUser")
	defer func() { done(err) }()

	if caller == nil || caller.IdentityID == "" {
		return nil, models.NewUnauthenticatedError("register")
	}
	username, err = validation.Username(username)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email, err = validation.Email(email)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.users.FindByIdentity(ctx, caller.IdentityID); err == nil {
		return nil, models.NewValidationError("User is already registered")
	} else if !models.HasCode(err, models.CodeNotFound) {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, username, ""); err != nil {
		return nil, err
	}

	user = &models.User{
		ID:         s.newID(),
		IdentityID: caller.IdentityID,
		Username:   username,
		Email:      email,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	observability.Logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// UpdateUsername renames the caller. Comments and likes already written keep
// the old display name.
func (s *FeedService) UpdateUsername(ctx context.Context, caller *identity.Caller, username string) (user *models.User, err error) {
	ctx, done := s.observe(ctx, "updateUsername")
	defer func() { done(err) }()

	user, err = s.requireUser(ctx, caller, "update your username")
	if err != nil {
		return nil, err
	}
	username, err = validation.Username(username)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if username == user.Username {
		return user, nil
	}
	if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUsername(ctx, user.ID, username); err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "username updated", slog.String("user_id", user.ID))
	user.Username = username
	return user, nil
}

func (s *FeedService) GetUser(ctx context.Context, userID string) (user *models.User, err error) {
	ctx, done := s.observe(ctx, "getUser")
	defer func() { done(err) }()

	if !validation.IsValidID(userID) {
		return nil, models.NewNotFoundError("User", userID)
	}
	return s.users.FindByID(ctx, userID)
}

func (s *FeedService) GetUserByIdentity(ctx context.Context, identityID string) (user *models.User, err error) {
	ctx, done := s.observe(ctx, "getUserByIdentity")
	defer func() { done(err) }()

	if identityID == "" {
		return nil, models.NewNotFoundError("User", identityID)
	}
	return s.users.FindByIdentity(ctx, identityID)
}

func (s *FeedService) ensureUsernameFree(ctx context.Context, username, ownerID string) error {
	existing, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != ownerID:
		return models.NewValidationError("Username is already taken")
	case err == nil, models.HasCode(err, models.CodeNotFound):
		return nil
	default:
		return err
	}
}
