// Package service holds the business rules behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"folio/internal/mailer"
	"folio/internal/models"
	"folio/internal/security"
	"folio/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	msgAccessDenied        = "Access denied!"
	msgMissingCredentials  = "Please provide an email and a password"
	msgBadCredentials      = "Email or password is incorrect."
	msgWrongCurrentPass    = "Your current password is wrong."
	msgPasswordMismatch    = "Passwords are not the same"
	msgNoPasswordUpdates   = "This route is not for password updates. Please use /change-password."
	ForgotPasswordResponse = "If valid, a message would have been sent to the provided email address for further instructions."
)

// UserStore is the persistence the user service needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	FindByIDWithPassword(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, id string, hash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id string, hash string, changedAt time.Time) (*models.User, error)
	Update(ctx context.Context, filter, update bson.M) (*models.User, error)
}

// Session is a signed-in user and their token.
type Session struct {
	User    *models.User
	Token   string
	Expires time.Time
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// UserOptions are the user service settings taken from config.
type UserOptions struct {
	Allowlist []string
	ResetURL  string
}

type UserService struct {
	users  UserStore
	creds  *security.Credentials
	tokens *security.TokenService
	mail   mailer.Sender
	opts   UserOptions
	now    func() time.Time
}

func NewUserService(users UserStore, creds *security.Credentials, tokens *security.TokenService, mail mailer.Sender, opts UserOptions) *UserService {
	return &UserService{
		users:  users,
		creds:  creds,
		tokens: tokens,
		mail:   mail,
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Register creates an account for an allow-listed email and signs it in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if !slices.Contains(s.opts.Allowlist, email) {
		return nil, models.NewBadRequestError(msgAccessDenied)
	}

	user := &models.User{
		FirstName: strings.ToLower(strings.TrimSpace(in.FirstName)),
		LastName:  strings.ToLower(strings.TrimSpace(in.LastName)),
		Email:     email,
	}
	if err := validation.Struct(user); err != nil {
		return nil, err
	}
	if err := validation.Password(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, models.NewDuplicateKeyError("email", email)
	} else if !errors.Is(err, models.ErrDocumentNotFound) {
		return nil, err
	}

	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = hash
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	user.Password = ""

	return s.session(user)
}

// Login checks credentials and signs the user in.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewBadRequestError(msgMissingCredentials)
	}

	user, err := s.users.FindByEmailWithPassword(ctx, normalizeEmail(email))
	if errors.Is(err, models.ErrDocumentNotFound) {
		return nil, models.NewUnauthenticatedError(msgBadCredentials)
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.VerifyPassword(password, user.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewUnauthenticatedError(msgBadCredentials)
	}
	user.Password = ""

	return s.session(user)
}

// ForgotPassword mails a reset link when email belongs to an account. The
// raw token is returned for development use; it is "" for unknown emails.
func (s *UserService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, models.ErrDocumentNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	token, err := s.creds.IssueResetToken()
	if err != nil {
		return "", models.NewInternalError(err)
	}
	id := user.ID.Hex()
	if err := s.users.SetResetToken(ctx, id, token.Hash, token.Expires); err != nil {
		return "", err
	}

	if err := s.mail.Send(ctx, mailer.ResetMessage(user.Email, s.resetLink(token.Raw))); err != nil {
		if cerr := s.users.ClearResetToken(ctx, id); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return "", models.NewInternalError(fmt.Errorf("send reset mail: %w", err))
	}
	return token.Raw, nil
}

func (s *UserService) resetLink(raw string) string {
	u, err := url.Parse(s.opts.ResetURL)
	if err != nil {
		return s.opts.ResetURL + "?resetToken=" + url.QueryEscape(raw)
	}
	q := u.Query()
	q.Set("resetToken", raw)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword redeems a reset token. The token is consumed by the same
// write that stores the new password.
func (s *UserService) ResetPassword(ctx context.Context, raw, password, confirm string) (*Session, error) {
	if raw == "" {
		return nil, models.NewInvalidOrExpiredTokenError()
	}
	user, err := s.users.FindByResetToken(ctx, security.HashResetToken(raw), s.now())
	if errors.Is(err, models.ErrDocumentNotFound) {
		return nil, models.NewInvalidOrExpiredTokenError()
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.setPassword(ctx, user.ID.Hex(), password, confirm)
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

// ChangePassword replaces the password of a signed-in user after checking
// the current one. Older sessions stop working.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, password, confirm string) (*Session, error) {
	user, err := s.users.FindByIDWithPassword(ctx, userID)
	if errors.Is(err, models.ErrDocumentNotFound) {
		return nil, models.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.VerifyPassword(current, user.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewUnauthenticatedError(msgWrongCurrentPass)
	}

	updated, err := s.setPassword(ctx, userID, password, confirm)
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

func (s *UserService) setPassword(ctx context.Context, id, password, confirm string) (*models.User, error) {
	if err := validation.Password(password); err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, models.NewValidationError(msgPasswordMismatch)
	}
	hash, err := s.creds.HashPassword(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	// One second back so a token issued right after this write still
	// post-dates the change.
	return s.users.SetPassword(ctx, id, hash, s.now().Add(-time.Second))
}

// UpdateMe applies profile changes. Only the names are writable here.
func (s *UserService) UpdateMe(ctx context.Context, userID string, body map[string]any) (*models.User, error) {
	if _, ok := body["password"]; ok {
		return nil, models.NewBadRequestError(msgNoPasswordUpdates)
	}
	if _, ok := body["passwordConfirm"]; ok {
		return nil, models.NewBadRequestError(msgNoPasswordUpdates)
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, models.ErrDocumentNotFound) {
		return nil, models.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if v, ok := body["firstName"].(string); ok {
		user.FirstName = strings.ToLower(strings.TrimSpace(v))
		set["firstName"] = user.FirstName
	}
	if v, ok := body["lastName"].(string); ok {
		user.LastName = strings.ToLower(strings.TrimSpace(v))
		set["lastName"] = user.LastName
	}
	if err := validation.Struct(user); err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return user, nil
	}
	set["updatedAt"] = s.now()

	updated, err := s.users.Update(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return nil, models.NewNotFoundError("user")
	}
	return updated, err
}

func (s *UserService) session(user *models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{User: user, Token: token, Expires: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
