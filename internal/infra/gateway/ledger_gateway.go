package gateway

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/ticketgate/client"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// LedgerGateway is the server ledger as seen from a scanner device.
type LedgerGateway struct {
	client *client.Client
}

func NewLedgerGateway(cl *client.Client) *LedgerGateway {
	return &LedgerGateway{client: cl}
}

func (g *LedgerGateway) Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	return g.client.SyncScans(ctx, records)
}

// Pinger is satisfied by client.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

const onlineKey = "online"

// HealthProbe answers Online from the last health check, refreshing it once the
// cached answer is older than ttl.
type HealthProbe struct {
	pinger  Pinger
	cache   *cache.Cache
	timeout time.Duration
}

func NewHealthProbe(pinger Pinger, ttl, timeout time.Duration) *HealthProbe {
	return &HealthProbe{
		pinger:  pinger,
		cache:   cache.New(ttl, 2*ttl),
		timeout: timeout,
	}
}

func (p *HealthProbe) Online() bool {
	if v, found := p.cache.Get(onlineKey); found {
		return v.(bool)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	online := p.pinger.Ping(ctx) == nil
	p.cache.SetDefault(onlineKey, online)
	return online
}

// MarkOffline forces the next Online call to report false until ttl passes.
func (p *HealthProbe) MarkOffline() {
	p.cache.SetDefault(onlineKey, false)
}

var (
	_ usecase.ScanLedger   = (*LedgerGateway)(nil)
	_ usecase.Connectivity = (*HealthProbe)(nil)
)
