package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type JWTClaims struct {
	jwt.RegisteredClaims
}

// TokenPair is one issued access/refresh pair. The refresh token is opaque
// and stored server side; the access token is a signed JWT.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) error
	LoginUser(ctx context.Context, email, password string) (*TokenPair, error)
	RefreshUser(ctx context.Context, refreshToken string) (*TokenPair, error)
	LogoutUser(ctx context.Context) error
	// SetContextFromToken validates the bearer token and attaches the
	// caller identity to the context for downstream services.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           baseLog.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
	if user == nil {
		return ErrValidation.WithErr(fmt.Errorf("missing user payload"))
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return ErrValidation.WithErr(fmt.Errorf("invalid email"))
	}
	if len(user.Password) < 8 {
		return ErrValidation.WithErr(fmt.Errorf("password must be at least 8 characters"))
	}

	exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return ErrValidation.WithErr(fmt.Errorf("email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hashed)

	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.ID = uuid.New()
		if _, err := as.userRepo.Create(ctx, tx, []*types.User{user}); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		as.log.Info("user registered", "user_id", user.ID)
		return nil
	})
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated.WithErr(fmt.Errorf("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrNotAuthenticated.WithErr(fmt.Errorf("invalid credentials"))
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One active session per user; a new login replaces the old one.
		if err := as.userTokenRepo.DeleteByUserID(ctx, tx, user.ID); err != nil {
			return fmt.Errorf("clear old tokens: %w", err)
		}
		issued, err := as.issueTokens(ctx, tx, user)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (as *authService) RefreshUser(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrNotAuthenticated.WithErr(fmt.Errorf("missing refresh token"))
	}

	var pair *TokenPair
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := as.userTokenRepo.GetByRefreshToken(ctx, tx, refreshToken)
		if err != nil {
			return fmt.Errorf("fetch refresh token: %w", err)
		}
		if stored == nil {
			return ErrNotAuthenticated.WithErr(fmt.Errorf("unknown refresh token"))
		}
		if stored.ExpiresAt.Before(as.now()) {
			if err := as.userTokenRepo.DeleteByUserID(ctx, tx, stored.UserID); err != nil {
				return fmt.Errorf("delete expired token: %w", err)
			}
			return ErrNotAuthenticated.WithErr(fmt.Errorf("refresh token expired"))
		}

		users, err := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{stored.UserID})
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if len(users) == 0 || users[0] == nil {
			return ErrNotAuthenticated.WithErr(fmt.Errorf("no user for refresh token"))
		}

		if err := as.userTokenRepo.DeleteByUserID(ctx, tx, stored.UserID); err != nil {
			return fmt.Errorf("rotate token: %w", err)
		}
		issued, err := as.issueTokens(ctx, tx, users[0])
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return ErrNotAuthenticated
	}
	return as.userTokenRepo.DeleteByUserID(ctx, nil, rd.UserID)
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid subject in token: %w", err)
	}
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}

func (as *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error) {
	accessToken, err := as.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken := uuid.New().String()
	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    as.now().Add(as.refreshTTL),
	}
	if _, err := as.userTokenRepo.Create(ctx, tx, row); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(as.now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(as.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}
