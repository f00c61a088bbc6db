package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/msomdec/care-practice/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const roleInstructor = "instructor"

var raterIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// IdentityService signs participants in by institutional email and
// issues JWT session tokens. Instructor access is unlocked with a PIN.
type IdentityService struct {
	participants  domain.ParticipantRepository
	jwtSecret     []byte
	tokenTTL      time.Duration
	emailPattern  *regexp.Regexp
	instructorPin []byte
}

// NewIdentityService creates a new IdentityService. instructorPinHash is
// a bcrypt hash; empty disables instructor access.
func NewIdentityService(participants domain.ParticipantRepository, jwtSecret string, tokenTTL time.Duration, emailPattern *regexp.Regexp, instructorPinHash string) *IdentityService {
	return &IdentityService{
		participants:  participants,
		jwtSecret:     []byte(jwtSecret),
		tokenTTL:      tokenTTL,
		emailPattern:  emailPattern,
		instructorPin: []byte(instructorPinHash),
	}
}

// SignIn validates the email, creates the participant on first use and
// returns a signed token.
func (s *IdentityService) SignIn(ctx context.Context, email string) (*domain.Participant, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !s.emailPattern.MatchString(email) {
		return nil, "", fmt.Errorf("%w: use your institutional email address", domain.ErrInvalidInput)
	}

	p, err := s.participants.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		p = &domain.Participant{
			ID:      uuid.NewString(),
			Email:   email,
			RaterID: defaultRaterID(email),
		}
		if err := s.participants.Create(ctx, p); err != nil {
			return nil, "", fmt.Errorf("create participant: %w", err)
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("get participant: %w", err)
	}

	token, err := s.generateJWT(p, false)
	if err != nil {
		return nil, "", fmt.Errorf("generate jwt: %w", err)
	}
	return p, token, nil
}

// UnlockInstructor checks the PIN and returns a token carrying the
// instructor role.
func (s *IdentityService) UnlockInstructor(p *domain.Participant, pin string) (string, error) {
	if len(s.instructorPin) == 0 {
		return "", fmt.Errorf("%w: instructor access is not configured", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(s.instructorPin, []byte(pin)); err != nil {
		return "", domain.ErrUnauthorized
	}
	token, err := s.generateJWT(p, true)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	return token, nil
}

// UpdateRaterID changes the label stored on assessment rows.
func (s *IdentityService) UpdateRaterID(ctx context.Context, participantID, raterID string) (*domain.Participant, error) {
	raterID = strings.TrimSpace(raterID)
	if !raterIDPattern.MatchString(raterID) {
		return nil, fmt.Errorf("%w: rater id may use letters, digits, dot, dash and underscore (max 64)", domain.ErrInvalidInput)
	}
	if err := s.participants.UpdateRaterID(ctx, participantID, raterID); err != nil {
		return nil, fmt.Errorf("update rater id: %w", err)
	}
	return s.participants.GetByID(ctx, participantID)
}

// Resolve validates a token and loads the identity it names.
func (s *IdentityService) Resolve(ctx context.Context, tokenString string) (*domain.Identity, error) {
	id, instructor, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	p, err := s.participants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{Participant: p, Instructor: instructor}, nil
}

// ValidateToken parses a JWT and returns the participant ID and whether
// the instructor role is present.
func (s *IdentityService) ValidateToken(tokenString string) (string, bool, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", false, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", false, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false, domain.ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	return sub, role == roleInstructor, nil
}

// Reissue signs a fresh token for p, keeping the instructor role when set.
func (s *IdentityService) Reissue(p *domain.Participant, instructor bool) (string, error) {
	return s.generateJWT(p, instructor)
}

// HashPIN produces the bcrypt hash stored in configuration.
func HashPIN(pin string, cost int) (string, error) {
	if len(pin) < 4 {
		return "", fmt.Errorf("%w: PIN must be at least 4 characters", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

func (s *IdentityService) generateJWT(p *domain.Participant, instructor bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   p.ID,
		"email": p.Email,
		"rater": p.RaterID,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	if instructor {
		claims["role"] = roleInstructor
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func defaultRaterID(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
