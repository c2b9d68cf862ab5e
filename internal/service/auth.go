package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/jwt"
)

var tracer = otel.Tracer("auth")

const (
	deviceSubjectPrefix = "device:"
	issuerSubjectPrefix = "issuer:"
)

// DeviceRegistry tracks enrolled scanner devices.
type DeviceRegistry interface {
	Register(ctx context.Context, device domain.Device) error
	IsRevoked(ctx context.Context, deviceID string) (bool, error)
}

type AuthService struct {
	config  *domain.Config
	secret  []byte
	devices DeviceRegistry
}

func NewAuthService(
	config *domain.Config,
	secret []byte,
	devices DeviceRegistry,
) *AuthService {
	return &AuthService{
		config:  config,
		secret:  secret,
		devices: devices,
	}
}

type AuthResult struct {
	Role     domain.Role
	DeviceID string
	Issuer   string
	Events   []string
}

// IssueDeviceToken enrolls a device for the given events and returns its bearer token.
func (s *AuthService) IssueDeviceToken(ctx context.Context, name string, events []string, ttl time.Duration) (string, domain.Device, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.IssueDeviceToken")
	defer span.End()

	if len(events) == 0 {
		return "", domain.Device{}, fmt.Errorf("%w: a device needs at least one event", domain.ErrInvalidInput)
	}

	device := domain.Device{
		ID:     uuid.NewString(),
		Name:   name,
		Events: events,
	}
	if s.devices != nil {
		if err := s.devices.Register(ctx, device); err != nil {
			span.RecordError(errors.Wrap(err, "Auth.Service.IssueDeviceToken: register failed"))
			return "", domain.Device{}, err
		}
	}

	now := time.Now()
	claims := jwt.Claims{
		Issuer:   s.config.FQDN,
		Subject:  deviceSubjectPrefix + device.ID,
		Audience: s.config.FQDN,
		IssuedAt: strconv.FormatInt(now.Unix(), 10),
		JWTID:    uuid.NewString(),
		Events:   events,
	}
	if ttl > 0 {
		claims.ExpirationTime = strconv.FormatInt(now.Add(ttl).Unix(), 10)
	}

	token, err := jwt.Create(claims, s.secret)
	if err != nil {
		span.RecordError(err)
		return "", domain.Device{}, err
	}
	return token, device, nil
}

// IssueIssuerToken returns a token for the box office that mints tickets.
func (s *AuthService) IssueIssuerToken(ctx context.Context, name string, ttl time.Duration) (string, error) {
	_, span := tracer.Start(ctx, "Auth.Service.IssueIssuerToken")
	defer span.End()

	if name == "" {
		return "", fmt.Errorf("%w: issuer name is required", domain.ErrInvalidInput)
	}

	now := time.Now()
	claims := jwt.Claims{
		Issuer:   s.config.FQDN,
		Subject:  issuerSubjectPrefix + name,
		Audience: s.config.FQDN,
		IssuedAt: strconv.FormatInt(now.Unix(), 10),
		JWTID:    uuid.NewString(),
	}
	if ttl > 0 {
		claims.ExpirationTime = strconv.FormatInt(now.Add(ttl).Unix(), 10)
	}

	token, err := jwt.Create(claims, s.secret)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return token, nil
}

// Authenticate validates a bearer token. Device tokens are also checked against
// the device registry so revoked scanners lose access at once.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	_, claims, err := jwt.Validate(token, s.secret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if name, ok := strings.CutPrefix(claims.Subject, issuerSubjectPrefix); ok && name != "" {
		return &AuthResult{Role: domain.RoleIssuer, Issuer: name}, nil
	}

	deviceID, ok := strings.CutPrefix(claims.Subject, deviceSubjectPrefix)
	if !ok || deviceID == "" {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	if s.devices != nil {
		revoked, err := s.devices.IsRevoked(ctx, deviceID)
		if err != nil {
			span.RecordError(errors.Wrap(err, "Auth.Service.Authenticate: devices.IsRevoked failed"))
			return nil, err
		}
		if revoked {
			err := fmt.Errorf("device %s is revoked", deviceID)
			span.RecordError(err)
			return nil, err
		}
	}

	return &AuthResult{Role: domain.RoleDevice, DeviceID: deviceID, Events: claims.Events}, nil
}
