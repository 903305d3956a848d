package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/miekg/dns"
)

const (
	mimeDNSMessage = "application/dns-message"
	mimeDNSJSON    = "application/dns-json"
)

// DoHClient sends DNS queries to DoH endpoints.
type DoHClient struct {
	httpClient  *http.Client
	format      Format
	probeDomain string
	userAgent   string
}

// NewDoHClient creates a DoHClient from cfg.
func NewDoHClient(cfg Config) *DoHClient {
	cfg = cfg.withDefaults()
	return &DoHClient{
		httpClient:  &http.Client{Timeout: cfg.DoHTimeout},
		format:      cfg.DoHFormat,
		probeDomain: cfg.DoHProbeDomain,
		userAgent:   cfg.UserAgent,
	}
}

// WithHTTPClient replaces the HTTP client. Used by tests.
func (c *DoHClient) WithHTTPClient(hc *http.Client) *DoHClient {
	c.httpClient = hc
	return c
}

// answerSet is the useful part of a DoH reply.
type answerSet struct {
	records int      // all answer RRs, including CNAMEs
	addrs   []string // A and AAAA data, in answer order
}

// Check queries the probe domain for A records through endpointURL.
// A reply without answer records counts as a failure even on HTTP 200.
func (c *DoHClient) Check(ctx context.Context, endpointURL string) bool {
	ans, err := c.query(ctx, endpointURL, c.probeDomain, dns.TypeA)
	if err != nil {
		return false
	}
	return ans.records > 0
}

// Lookup resolves domain through endpointURL and returns its A addresses
// followed by its AAAA addresses. An error is returned only when both
// queries fail.
func (c *DoHClient) Lookup(ctx context.Context, endpointURL, domain string) ([]string, error) {
	name, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	v4, errA := c.query(ctx, endpointURL, name, dns.TypeA)
	v6, errAAAA := c.query(ctx, endpointURL, name, dns.TypeAAAA)
	if errA != nil && errAAAA != nil {
		return nil, errA
	}
	out := make([]string, 0, len(v4.addrs)+len(v6.addrs))
	out = append(out, v4.addrs...)
	out = append(out, v6.addrs...)
	return out, nil
}

func (c *DoHClient) query(ctx context.Context, endpointURL, domain string, qtype uint16) (answerSet, error) {
	if c.format == FormatJSON {
		return c.queryJSON(ctx, endpointURL, domain, qtype)
	}
	return c.queryWire(ctx, endpointURL, domain, qtype)
}

func (c *DoHClient) queryWire(ctx context.Context, endpointURL, domain string, qtype uint16) (answerSet, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	// RFC 8484 recommends ID 0 for cache friendliness.
	msg.Id = 0
	packed, err := msg.Pack()
	if err != nil {
		return answerSet{}, fmt.Errorf("pack query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(packed))
	if err != nil {
		return answerSet{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mimeDNSMessage)
	req.Header.Set("Accept", mimeDNSMessage)
	c.setUserAgent(req)

	body, err := c.do(req)
	if err != nil {
		return answerSet{}, err
	}
	reply := new(dns.Msg)
	if err := reply.Unpack(body); err != nil {
		return answerSet{}, fmt.Errorf("unpack reply: %w", err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return answerSet{}, fmt.Errorf("rcode %s", dns.RcodeToString[reply.Rcode])
	}

	ans := answerSet{records: len(reply.Answer)}
	for _, rr := range reply.Answer {
		switch v := rr.(type) {
		case *dns.A:
			ans.addrs = append(ans.addrs, v.A.String())
		case *dns.AAAA:
			ans.addrs = append(ans.addrs, v.AAAA.String())
		}
	}
	return ans, nil
}

type jsonReply struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type uint16 `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

func (c *DoHClient) queryJSON(ctx context.Context, endpointURL, domain string, qtype uint16) (answerSet, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return answerSet{}, fmt.Errorf("parse endpoint url: %w", err)
	}
	q := u.Query()
	q.Set("name", domain)
	q.Set("type", strconv.Itoa(int(qtype)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return answerSet{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", mimeDNSJSON)
	c.setUserAgent(req)

	body, err := c.do(req)
	if err != nil {
		return answerSet{}, err
	}
	var reply jsonReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return answerSet{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Status != dns.RcodeSuccess {
		return answerSet{}, fmt.Errorf("rcode %s", dns.RcodeToString[reply.Status])
	}

	ans := answerSet{records: len(reply.Answer)}
	for _, rr := range reply.Answer {
		if rr.Type == dns.TypeA || rr.Type == dns.TypeAAAA {
			ans.addrs = append(ans.addrs, rr.Data)
		}
	}
	return ans, nil
}

func (c *DoHClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDoHResponseBytes))
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDoHResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if len(body) > maxDoHResponseBytes {
		return nil, errors.New("reply too large")
	}
	return body, nil
}

func (c *DoHClient) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
