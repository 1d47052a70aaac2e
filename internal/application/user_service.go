package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

type Service struct {
	Store    repo.Store
	Roles    *RoleService
	Tokens   *TokenService
	JWT      *helpers.JWTManager
	Notifier Notifier
	Notify   *BestEffort
	Logger   *logrus.Logger

	Redis      *redis.Client
	SessionTTL time.Duration

	GCS               *storage.Client
	GCSBucket         string
	AvatarBaseURL     string
	DefaultAvatarPath string

	ES           *elasticsearch.Client
	ESUsersIndex string
}

func NewService(store repo.Store, roles *RoleService, tokens *TokenService, jwt *helpers.JWTManager, notifier Notifier, notify *BestEffort, logger *logrus.Logger) *Service {
	return &Service{
		Store:      store,
		Roles:      roles,
		Tokens:     tokens,
		JWT:        jwt,
		Notifier:   notifier,
		Notify:     notify,
		Logger:     logger,
		SessionTTL: 24 * time.Hour,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// UserView is the public representation of an account.
type UserView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	ProfilePicture  string    `json:"profile_picture"`
	Role            string    `json:"role"`
	Roles           []string  `json:"roles"`
	IsActive        bool      `json:"is_active"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// View builds the UserView of a user loaded with GetDetailed.
func (s *Service) View(u *entity.User) UserView {
	v := UserView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            PrimaryRole(u),
		Roles:           rankRoles(u.RoleNames()),
		IsActive:        u.IsActive,
		IsEmailVerified: u.EmailVerified(),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	var avatar string
	if u.Profile != nil {
		v.Phone = u.Profile.Phone
		if u.Profile.AvatarPath != nil {
			avatar = *u.Profile.AvatarPath
		}
	}
	v.ProfilePicture = helpers.AvatarURL(s.AvatarBaseURL, s.GCSBucket, avatar, s.DefaultAvatarPath)
	return v
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type RegisterResult struct {
	User             UserView
	VerificationSent bool
}

// Register creates an active account holding USER and mails a verification
// token. A failed verification email does not fail registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		Password:      hash,
		IsActive:      true,
		Profile:       &entity.UserProfile{Phone: in.Phone},
		EmailStatus:   &entity.UserEmail{},
		PasswordReset: &entity.UserPasswordReset{},
	}
	err = s.Store.WithinTx(ctx, func(tx repo.Store) error {
		if err := tx.Users().CreateAccount(ctx, u); err != nil {
			return err
		}
		role, _, err := tx.Roles().FindOrCreate(ctx, entity.RoleUser)
		if err != nil {
			return err
		}
		_, err = tx.Roles().AddToUser(ctx, u.ID, role.ID)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	sent := true
	if _, err := s.Tokens.IssueVerificationToken(ctx, u.ID); err != nil {
		sent = false
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("registration verification email failed")
		}
	}

	full, err := s.Store.Users().GetDetailed(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	_ = s.indexUser(ctx, full)
	helpers.LogInfo(s.Logger, "user registered", logrus.Fields{"user_id": u.ID})
	return &RegisterResult{User: s.View(full), VerificationSent: sent}, nil
}

// Authenticate validates email/password and returns the user without issuing tokens.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	// Email verification is not required to log in; it is requested from a protected endpoint.
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	pair, err := s.signPair(u.ID, sid)
	if err != nil {
		helpers.LogError(s.Logger, "generate tokens failed", err, logrus.Fields{"user_id": u.ID})
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"name":       u.Name,
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		if rErr := helpers.SaveSession(ctx, s.Redis, u.ID, fields, s.SessionTTL); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("user_id", u.ID).Warn("redis session save failed")
		}
	}
	return pair, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*UserView, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	view, err := s.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return view, pair, nil
}

// Refresh rotates the session id and token pair if refreshToken belongs to the
// current session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Store.Users().GetByID(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if err := s.ValidateSession(ctx, u.ID, claims.SessionID); err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}

	sid := uuid.NewString()
	pair, err := s.signPair(u.ID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	if s.Redis != nil {
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"sid":        sid,
			"updated_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, s.SessionTTL)
		_, _ = pipe.Exec(ctx)
	}
	return pair, u.ID, nil
}

// ValidateSession checks that sid is the live session of userID. Without
// Redis every signed token is accepted.
func (s *Service) ValidateSession(ctx context.Context, userID, sid string) error {
	if s.Redis == nil {
		return nil
	}
	data, err := helpers.LoadSession(ctx, s.Redis, userID)
	if err != nil || data["sid"] != sid {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	return helpers.DeleteSession(ctx, s.Redis, userID)
}

func (s *Service) signPair(userID, sid string) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(userID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(userID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*UserView, error) {
	u, err := s.Store.Users().GetDetailed(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	v := s.View(u)
	return &v, nil
}

type UpdateProfileInput struct {
	Name  *string
	Phone *string
}

// UpdateProfile with ctx, RFC3339 timestamps, and TTL preservation
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*UserView, error) {
	u, err := s.Store.Users().GetDetailed(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	err = s.Store.WithinTx(ctx, func(tx repo.Store) error {
		if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
			u.Name = strings.TrimSpace(*in.Name)
			if err := u.Validate(); err != nil {
				return err
			}
			if err := tx.Users().UpdateName(ctx, u.ID, u.Name); err != nil {
				return err
			}
		}
		if in.Phone != nil {
			p := entity.UserProfile{UserID: u.ID, Phone: *in.Phone}
			if u.Profile != nil {
				p.AvatarPath = u.Profile.AvatarPath
			}
			if err := tx.Users().UpsertProfile(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"name":       u.Name,
			"updated_at": nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return s.reindex(ctx, userID)
}

// UploadAvatar stores the image in GCS and points the profile at it.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*UserView, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return nil, ErrStorageUnavailable
	}
	u, err := s.Store.Users().GetDetailed(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.Profile == nil {
		return nil, fmt.Errorf("user %s has no profile", userID)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, helpers.NewID()+ext))
	if err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r); err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	p := *u.Profile
	p.AvatarPath = &objectPath
	if err := s.Store.Users().UpsertProfile(ctx, &p); err != nil {
		return nil, err
	}
	return s.reindex(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, current) {
		return ErrInvalidCredentials
	}
	hash, err := helpers.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if s.Notifier != nil {
		s.Notify.Go(ctx, NotifyPasswordChanged, u.ID, func(ctx context.Context) error {
			return s.Notifier.SendPasswordChangedEmail(ctx, u.Email, u.Name)
		})
	}
	return nil
}

func (s *Service) ListAllUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.Store.Users().ListDetailed(ctx)
	if err != nil {
		return nil, err
	}
	return s.Views(users), nil
}

// Views maps users loaded with their relations to UserView.
func (s *Service) Views(users []entity.User) []UserView {
	out := make([]UserView, 0, len(users))
	for i := range users {
		out = append(out, s.View(&users[i]))
	}
	return out
}

func (s *Service) reindex(ctx context.Context, userID string) (*UserView, error) {
	full, err := s.Store.Users().GetDetailed(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, full)
	v := s.View(full)
	return &v, nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	v := s.View(u)
	doc := map[string]any{
		"id":         v.ID,
		"email":      v.Email,
		"name":       v.Name,
		"role":       v.Role,
		"avatar_url": v.ProfilePicture,
		"created_at": v.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": v.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a simple multi_match search on email and name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, fmt.Errorf("search users: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
