package service

import (
	"context"
	"testing"
	"time"

	"github.com/totegamma/ticketgate/internal/domain"
)

type mockDevices struct {
	registered []domain.Device
	revoked    map[string]bool
}

func (m *mockDevices) Register(ctx context.Context, device domain.Device) error {
	m.registered = append(m.registered, device)
	return nil
}

func (m *mockDevices) IsRevoked(ctx context.Context, deviceID string) (bool, error) {
	return m.revoked[deviceID], nil
}

func TestIssueAndAuthenticateDevice(t *testing.T) {
	devices := &mockDevices{revoked: map[string]bool{}}
	svc := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("secret"), devices)

	token, device, err := svc.IssueDeviceToken(context.Background(), "north gate", []string{"42"}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(devices.registered) != 1 {
		t.Fatalf("expected device to be registered")
	}

	result, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	if result.Role != domain.RoleDevice || result.DeviceID != device.ID || len(result.Events) != 1 || result.Events[0] != "42" {
		t.Fatalf("unexpected result %+v", result)
	}

	devices.revoked[device.ID] = true
	if _, err := svc.Authenticate(context.Background(), token); err == nil {
		t.Fatalf("expected revoked device to fail")
	}
}

func TestAuthenticateAudience(t *testing.T) {
	issuer := NewAuthService(&domain.Config{FQDN: "other.example.com"}, []byte("secret"), nil)
	token, _, err := issuer.IssueDeviceToken(context.Background(), "gate", []string{"42"}, 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	svc := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("secret"), nil)
	if _, err := svc.Authenticate(context.Background(), token); err == nil {
		t.Fatalf("expected audience mismatch")
	}
}

func TestIssueDeviceTokenNeedsEvent(t *testing.T) {
	svc := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("secret"), nil)
	if _, _, err := svc.IssueDeviceToken(context.Background(), "gate", nil, 0); err == nil {
		t.Fatalf("expected error without events")
	}
}

type revokeAll struct{}

func (r *revokeAll) Register(ctx context.Context, device domain.Device) error { return nil }

func (r *revokeAll) IsRevoked(ctx context.Context, deviceID string) (bool, error) { return true, nil }

func TestIssuerToken(t *testing.T) {
	svc := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("secret"), &revokeAll{})

	token, err := svc.IssueIssuerToken(context.Background(), "box-office", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	result, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	if result.Role != domain.RoleIssuer || result.Issuer != "box-office" || result.DeviceID != "" {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := svc.IssueIssuerToken(context.Background(), "", 0); err == nil {
		t.Fatalf("expected error without a name")
	}
}

func TestAuthenticateRejectsForeignSecret(t *testing.T) {
	other := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("other"), nil)
	token, err := other.IssueIssuerToken(context.Background(), "box-office", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	svc := NewAuthService(&domain.Config{FQDN: "gate.example.com"}, []byte("secret"), nil)
	if _, err := svc.Authenticate(context.Background(), token); err == nil {
		t.Fatalf("expected signature failure")
	}
}
