package analyzers

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ocsp"

	"kestrel/internal/domain"
)

// ServiceTLS is the limiter bucket for TLS handshakes and OCSP calls.
const ServiceTLS = "tls"

const (
	tlsProbePort    = "443"
	maxOCSPResponse = 64 << 10
)

// TlsProber performs one TLS handshake against a host and reports the
// resulting connection state.
type TlsProber interface {
	Handshake(ctx context.Context, host string, insecure bool) (tls.ConnectionState, error)
}

// NetProber dials the host on port 443 and handshakes over the connection.
type NetProber struct {
	// Dial is swappable for tests; nil means a plain net.Dialer.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func (p *NetProber) Handshake(ctx context.Context, host string, insecure bool) (tls.ConnectionState, error) {
	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	rawConn, err := dial(ctx, "tcp", net.JoinHostPort(host, tlsProbePort))
	if err != nil {
		return tls.ConnectionState{}, err
	}

	conn := tls.Client(rawConn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	})
	defer conn.Close()

	if err := conn.HandshakeContext(ctx); err != nil {
		return tls.ConnectionState{}, err
	}
	return conn.ConnectionState(), nil
}

// TLSAnalyzer probes the HTTPS endpoint of a host and inspects the served
// certificate chain. Probes are never cached — certificates rotate and a
// stale revocation verdict is worse than a repeated handshake — but each one
// still passes through the limiter.
type TLSAnalyzer struct {
	Prober    TlsProber
	Gate      *Gate
	Timeout   time.Duration
	CheckOCSP bool
	HTTPDoer  *http.Client

	now func() time.Time
}

func NewTLSAnalyzer(timeout time.Duration, checkOCSP bool, gate *Gate) *TLSAnalyzer {
	return &TLSAnalyzer{
		Prober:    &NetProber{},
		Gate:      gate,
		Timeout:   timeout,
		CheckOCSP: checkOCSP,
		HTTPDoer:  &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

func (a *TLSAnalyzer) Analyze(ctx context.Context, host string) domain.TLSCertificateAnalysis {
	payload, err := a.Gate.DoUncached(ctx, ServiceTLS, func(ctx context.Context) ([]byte, error) {
		return json.Marshal(a.probe(ctx, host))
	})
	if err != nil {
		log.Debug("TLS analysis unavailable", "host", host, "error", err)
		return domain.TLSCertificateAnalysis{}
	}

	var result domain.TLSCertificateAnalysis
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warn("Corrupt TLS analysis payload", "host", host, "error", err)
		return domain.TLSCertificateAnalysis{}
	}
	return result
}

func (a *TLSAnalyzer) probe(ctx context.Context, host string) domain.TLSCertificateAnalysis {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	state, verifyErr, dialErr := a.handshake(ctx, host)
	if dialErr != nil {
		log.Debug("TLS probe failed", "host", host, "error", dialErr)
		return domain.TLSCertificateAnalysis{Available: true, HTTPSAvailable: false}
	}

	result := domain.TLSCertificateAnalysis{
		Available:      true,
		HTTPSAvailable: true,
		TLSVersion:     tlsVersionName(state.Version),
	}

	if len(state.PeerCertificates) == 0 {
		result.SecurityIssues = append(result.SecurityIssues, "no certificate presented")
		return result
	}

	leaf := state.PeerCertificates[0]
	result.Issuer = leaf.Issuer.CommonName
	result.Subject = leaf.Subject.CommonName
	result.NotBefore = leaf.NotBefore
	result.NotAfter = leaf.NotAfter
	result.DaysUntilExpiry = int(leaf.NotAfter.Sub(a.now()).Hours() / 24)

	result.HasValidCertificate = verifyErr == nil
	if verifyErr != nil {
		result.SecurityIssues = append(result.SecurityIssues, verifyErr.Error())
	}
	if leaf.Issuer.String() == leaf.Subject.String() && len(state.PeerCertificates) == 1 {
		result.SelfSigned = true
	}
	if a.now().After(leaf.NotAfter) {
		result.SecurityIssues = append(result.SecurityIssues, "certificate expired")
	}
	if state.Version < tls.VersionTLS12 {
		result.SecurityIssues = append(result.SecurityIssues, "legacy TLS version")
	}

	if a.CheckOCSP && len(state.PeerCertificates) > 1 {
		revoked, err := a.checkRevocation(ctx, leaf, state.PeerCertificates[1])
		if err != nil {
			log.Debug("OCSP check skipped", "host", host, "error", err)
		} else if revoked {
			result.Revoked = true
			result.SecurityIssues = append(result.SecurityIssues, "certificate revoked")
		}
	}

	return result
}

// handshake connects with verification on, falling back to an unverified
// handshake so an invalid chain can still be described. verifyErr carries the
// original verification failure; dialErr means the endpoint is unreachable.
func (a *TLSAnalyzer) handshake(ctx context.Context, host string) (tls.ConnectionState, error, error) {
	state, err := a.Prober.Handshake(ctx, host, false)
	if err == nil {
		return state, nil, nil
	}

	var certErr *tls.CertificateVerificationError
	if !errors.As(err, &certErr) {
		return tls.ConnectionState{}, nil, err
	}

	state, retryErr := a.Prober.Handshake(ctx, host, true)
	if retryErr != nil {
		return tls.ConnectionState{}, nil, retryErr
	}
	return state, err, nil
}

// checkRevocation asks the certificate's OCSP responder whether the leaf has
// been revoked.
func (a *TLSAnalyzer) checkRevocation(ctx context.Context, leaf, issuer *x509.Certificate) (bool, error) {
	if len(leaf.OCSPServer) == 0 {
		return false, fmt.Errorf("no OCSP responder in certificate")
	}

	request, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return false, fmt.Errorf("build OCSP request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, leaf.OCSPServer[0], bytes.NewReader(request))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	httpResp, err := a.HTTPDoer.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("OCSP responder %s: %w", leaf.OCSPServer[0], err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxOCSPResponse))
	if err != nil {
		return false, err
	}

	response, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return false, fmt.Errorf("parse OCSP response: %w", err)
	}
	return response.Status == ocsp.Revoked, nil
}

func tlsVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS13:
		return "TLS 1.3"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS10:
		return "TLS 1.0"
	default:
		return fmt.Sprintf("0x%04x", version)
	}
}
