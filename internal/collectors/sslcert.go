package collectors

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
)

// SSLCert connects to port 443 of discovered hosts, inspects the presented
// certificate chain, and reports issuance details, lifetime problems, and
// the names the certificate covers.
type SSLCert struct {
	collector.Base
}

func init() {
	Register("sslcert", func() collector.Collector { return &SSLCert{} })
}

func (s *SSLCert) Meta() collector.Meta {
	return collector.Meta{
		Name:       "SSL Certificate Analyzer",
		Summary:    "Retrieves certificates from target hosts and analyzes subject, issuer, validity and alternative names.",
		UseCases:   []string{"Footprint", "Investigate"},
		Categories: []string{"Crawling and Scanning"},
	}
}

func (s *SSLCert) Opts() map[string]any {
	return map[string]any{
		"tcpport":     443,
		"ssltimeout":  10,
		"verifydays":  30,
		"certexpired": true,
	}
}

func (s *SSLCert) OptDescs() map[string]string {
	return map[string]string{
		"tcpport":     "TCP port to connect to for the TLS handshake.",
		"ssltimeout":  "Seconds to wait for the TLS handshake.",
		"verifydays":  "Flag certificates expiring within this many days.",
		"certexpired": "Report expired certificates.",
	}
}

func (s *SSLCert) Setup(ctx *collector.Context, userOpts map[string]any) error {
	s.Init("sslcert")
	s.Configure(ctx, s.Opts(), userOpts)
	return nil
}

func (s *SSLCert) WatchedEvents() []string {
	return []string{"INTERNET_NAME"}
}

func (s *SSLCert) ProducedEvents() []string {
	return []string{
		"SSL_CERTIFICATE_ISSUED",
		"SSL_CERTIFICATE_ISSUER",
		"SSL_CERTIFICATE_RAW",
		"SSL_CERTIFICATE_MISMATCH",
		"SSL_CERTIFICATE_EXPIRED",
		"SSL_CERTIFICATE_EXPIRING",
		"INTERNET_NAME",
		"CO_HOSTED_SITE",
	}
}

func (s *SSLCert) HandleEvent(e *event.Event) error {
	if s.CheckForStop() {
		return nil
	}
	host := strings.ToLower(e.Data)
	if s.AlreadyProcessed(host) {
		return nil
	}

	conn, err := netutil.SafeSSLSocket(host, s.OptInt("tcpport"),
		time.Duration(s.OptInt("ssltimeout"))*time.Second)
	if err != nil {
		s.Debug("TLS connect failed", "host", host, "err", err)
		return nil
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	leaf := certs[0]

	s.emitRaw(leaf, e)
	s.EmitEvent("SSL_CERTIFICATE_ISSUED", leaf.Subject.String(), e)
	s.EmitEvent("SSL_CERTIFICATE_ISSUER", leaf.Issuer.String(), e)

	if err := leaf.VerifyHostname(host); err != nil {
		s.EmitEvent("SSL_CERTIFICATE_MISMATCH",
			fmt.Sprintf("%s (presented to %s)", leaf.Subject.CommonName, host), e)
	}

	now := time.Now()
	if now.After(leaf.NotAfter) {
		// An expired certificate's names are stale; do not chase them.
		if s.OptBool("certexpired") {
			s.EmitEvent("SSL_CERTIFICATE_EXPIRED",
				fmt.Sprintf("%s expired %s", host, leaf.NotAfter.Format("2006-01-02")), e)
		}
		return nil
	}
	if days := s.OptInt("verifydays"); days > 0 && now.Add(time.Duration(days)*24*time.Hour).After(leaf.NotAfter) {
		s.EmitEvent("SSL_CERTIFICATE_EXPIRING",
			fmt.Sprintf("%s expires %s", host, leaf.NotAfter.Format("2006-01-02")), e)
	}

	for _, san := range leaf.DNSNames {
		if s.CheckForStop() {
			return nil
		}
		san = strings.ToLower(strings.TrimPrefix(san, "*."))
		if san == host || !netutil.ValidHost(san) {
			continue
		}
		if s.Target().Matches(san, true, false) {
			s.EmitEvent("INTERNET_NAME", san, e)
		} else {
			s.EmitEvent("CO_HOSTED_SITE", san, e)
		}
	}
	return nil
}

// emitRaw serializes the interesting certificate fields as one JSON blob
// for UI consumption and later correlation.
func (s *SSLCert) emitRaw(cert *x509.Certificate, e *event.Event) {
	summary := map[string]any{
		"subject":    cert.Subject.String(),
		"issuer":     cert.Issuer.String(),
		"serial":     cert.SerialNumber.String(),
		"not_before": cert.NotBefore.UTC().Format(time.RFC3339),
		"not_after":  cert.NotAfter.UTC().Format(time.RFC3339),
		"san":        cert.DNSNames,
		"sig_alg":    cert.SignatureAlgorithm.String(),
	}
	data, err := json.Marshal(summary)
	if err != nil {
		s.Debug("could not serialize certificate", "err", err)
		return
	}
	s.EmitEvent("SSL_CERTIFICATE_RAW", string(data), e)
}

var _ collector.Collector = (*SSLCert)(nil)
