package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/policy"
)

func newTestIssuer(qr *mockQR, renderer *mockRenderer, banners BannerFetcher, anchors AnchorValidator) *Issuer {
	return NewIssuer(qr, renderer, banners, anchors, IssuerOptions{
		Clock:      fixedClock(time.UnixMilli(1700000000000)),
		Random:     bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)),
		NewTraceID: func() string { return "trace-1" },
	})
}

func issueInput() IssueInput {
	return IssueInput{
		EventID:      "42",
		AttendeeID:   "A1",
		TicketType:   "VIP",
		AttendeeName: "Ada",
		SecretSalt:   "s",
		Event: domain.EventInfo{
			Name:      "Launch Night",
			Date:      "2026-03-01",
			Time:      "18:00",
			Venue:     "Hall 1",
			BannerURL: "https://example.com/banner.png",
		},
	}
}

func TestIssueProducesVerifiablePayload(t *testing.T) {
	qr := &mockQR{}
	renderer := &mockRenderer{}
	issuer := newTestIssuer(qr, renderer, &mockBanners{}, nil)

	res, err := issuer.Issue(context.Background(), issueInput())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if !strings.HasPrefix(res.TicketID, "42-") {
		t.Fatalf("unexpected ticket id %s", res.TicketID)
	}
	if res.Credential.IssuedAt != 1700000000000 {
		t.Fatalf("expected issuedAt from clock got %d", res.Credential.IssuedAt)
	}
	if qr.payload != res.QRPayload {
		t.Fatalf("qr encoded %q but result carries %q", qr.payload, res.QRPayload)
	}
	if !bytes.HasPrefix(res.Document, []byte("%PDF")) {
		t.Fatalf("expected document bytes")
	}

	hash := ticketgate.SecurityHash(res.Credential, "s")
	if renderer.artifact.Microtext != hash[:32] {
		t.Fatalf("microtext mismatch")
	}
	if renderer.artifact.TraceHash != hash[len(hash)-12:] {
		t.Fatalf("trace hash mismatch")
	}
	if renderer.artifact.Border != policy.Gold {
		t.Fatalf("expected gold border for VIP got %+v", renderer.artifact.Border)
	}
	if renderer.artifact.TraceID != "trace-1" || renderer.artifact.Watermark != Watermark {
		t.Fatalf("unexpected trace metadata %+v", renderer.artifact)
	}
	if string(renderer.artifact.Banner) != "banner" {
		t.Fatalf("expected banner to be passed to renderer")
	}

	v := NewVerifier(newMockStore(), VerifierOptions{})
	out, err := v.Verify(context.Background(), VerifyInput{Raw: res.QRPayload, SecretSalt: "s", ExpectedEventID: "42"})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Status != ticketgate.StatusValid || out.TicketID != res.TicketID {
		t.Fatalf("expected VALID for %s got %s %s", res.TicketID, out.Status, out.TicketID)
	}
}

func TestIssueUsesPurchaseTime(t *testing.T) {
	issuer := newTestIssuer(&mockQR{}, &mockRenderer{}, nil, nil)
	in := issueInput()
	in.PurchasedAt = time.UnixMilli(1600000000000)

	res, err := issuer.Issue(context.Background(), in)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if res.Credential.IssuedAt != 1600000000000 {
		t.Fatalf("expected purchase time got %d", res.Credential.IssuedAt)
	}
}

func TestIssueBannerFailureIsNotFatal(t *testing.T) {
	renderer := &mockRenderer{}
	issuer := newTestIssuer(&mockQR{}, renderer, &mockBanners{err: errors.New("404")}, nil)

	res, err := issuer.Issue(context.Background(), issueInput())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(res.Document) == 0 {
		t.Fatalf("expected document")
	}
	if renderer.artifact.Banner != nil {
		t.Fatalf("expected no banner")
	}
}

func TestIssueQRFailureIsFatal(t *testing.T) {
	issuer := newTestIssuer(&mockQR{err: errors.New("too long")}, &mockRenderer{}, nil, nil)
	_, err := issuer.Issue(context.Background(), issueInput())
	if !errors.Is(err, domain.ErrQREncoding) {
		t.Fatalf("expected ErrQREncoding got %v", err)
	}
}

func TestIssueRenderFailureIsFatal(t *testing.T) {
	issuer := newTestIssuer(&mockQR{}, &mockRenderer{err: errors.New("font missing")}, nil, nil)
	_, err := issuer.Issue(context.Background(), issueInput())
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("expected ErrRender got %v", err)
	}

	issuer = newTestIssuer(&mockQR{}, &mockRenderer{empty: true}, nil, nil)
	_, err = issuer.Issue(context.Background(), issueInput())
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("expected ErrRender for empty document got %v", err)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	issuer := newTestIssuer(&mockQR{}, &mockRenderer{}, nil, nil)

	in := issueInput()
	in.SecretSalt = ""
	if _, err := issuer.Issue(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing salt got %v", err)
	}

	in = issueInput()
	in.AttendeeID = "A|1"
	if _, err := issuer.Issue(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for delimiter got %v", err)
	}
}

func TestIssueAnchor(t *testing.T) {
	anchor := &ticketgate.Anchor{Chain: "ethereum", TxHash: "0x01"}

	issuer := newTestIssuer(&mockQR{}, &mockRenderer{}, nil, &mockAnchors{err: domain.ErrInvalidAnchor})
	in := issueInput()
	in.Anchor = anchor
	if _, err := issuer.Issue(context.Background(), in); !errors.Is(err, domain.ErrInvalidAnchor) {
		t.Fatalf("expected ErrInvalidAnchor got %v", err)
	}

	issuer = newTestIssuer(&mockQR{}, &mockRenderer{}, nil, &mockAnchors{})
	res, err := issuer.Issue(context.Background(), in)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	v := NewVerifier(newMockStore(), VerifierOptions{})
	out, _ := v.Verify(context.Background(), VerifyInput{Raw: res.QRPayload, SecretSalt: "s", ExpectedEventID: "42", Anchor: anchor})
	if out.Status != ticketgate.StatusValid {
		t.Fatalf("expected VALID got %s", out.Status)
	}
}

func TestIssueDistinctTicketIDs(t *testing.T) {
	issuer := NewIssuer(&mockQR{}, &mockRenderer{}, nil, nil, IssuerOptions{})
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		res, err := issuer.Issue(context.Background(), issueInput())
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		if seen[res.TicketID] {
			t.Fatalf("duplicate ticket id %s", res.TicketID)
		}
		seen[res.TicketID] = true
	}
}
