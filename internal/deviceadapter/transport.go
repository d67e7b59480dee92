package deviceadapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Transport fetches the raw response to a single device command. The
// second return value indicates whether Body is already well-formed JSON
// (true for nxapi and "<cmd> | json" responses) or was produced by running
// it through a StructuredParser (also true, by construction) versus
// unparseable text (false, which is always accompanied by a non-nil err).
type Transport interface {
	RunCommand(ctx context.Context, cmd string) (body []byte, jsonish bool, err error)
}

// NXAPIConfig configures the JSON-RPC-over-HTTPS transport.
type NXAPIConfig struct {
	Scheme   string // "https" (default) or "http"
	Port     int    // default 443
	Verify   bool   // TLS certificate verification
	Username string
	Password string
}

type nxapiRequest struct {
	Version      string `json:"version"`
	Type         string `json:"type"`
	Input        string `json:"input"`
	OutputFormat string `json:"output_format"`
}

// NXAPITransport issues JSON-RPC-over-HTTPS requests to /ins, per spec
// §4.2 step 1.
type NXAPITransport struct {
	host   string
	cfg    NXAPIConfig
	client *http.Client
}

func NewNXAPITransport(host string, cfg NXAPIConfig, timeout time.Duration) *NXAPITransport {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Port == 0 {
		cfg.Port = 443
	}
	return &NXAPITransport{
		host: host,
		cfg:  cfg,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.Verify},
			},
		},
	}
}

func (t *NXAPITransport) RunCommand(ctx context.Context, cmd string) ([]byte, bool, error) {
	reqBody, err := json.Marshal(nxapiRequest{
		Version:      "1.2",
		Type:         "cli_show",
		Input:        cmd,
		OutputFormat: "json",
	})
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: encode nxapi request: %w", err)
	}

	url := fmt.Sprintf("%s://%s:%d/ins", t.cfg.Scheme, t.host, t.cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: build nxapi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(t.cfg.Username, t.cfg.Password)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: nxapi request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: read nxapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("deviceadapter: nxapi %q: status %d: %s", cmd, resp.StatusCode, string(raw))
	}

	return extractNXAPIBody(raw)
}

// extractNXAPIBody pulls outputs.output.body out of the envelope and
// re-marshals it to bytes; if body is a list, the first element is used
// (spec §4.2 step 1).
func extractNXAPIBody(raw []byte) ([]byte, bool, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false, fmt.Errorf("deviceadapter: decode nxapi envelope: %w", err)
	}

	outputs, _ := root["outputs"].(map[string]any)
	var outputNode any = outputs["output"]
	if list, ok := outputNode.([]any); ok {
		if len(list) == 0 {
			return nil, false, fmt.Errorf("deviceadapter: nxapi response has empty outputs.output list")
		}
		outputNode = list[0]
	}
	outputMap, ok := outputNode.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("deviceadapter: nxapi response missing outputs.output")
	}

	if code := outputMap["code"]; code != nil {
		if s, ok := code.(string); ok && s != "" && s != "200" {
			return nil, false, fmt.Errorf("deviceadapter: nxapi command error: %v", outputMap["msg"])
		}
	}

	body := outputMap["body"]
	if list, ok := body.([]any); ok {
		if len(list) == 0 {
			return []byte("{}"), true, nil
		}
		body = list[0]
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: re-encode nxapi body: %w", err)
	}
	return encoded, true, nil
}

// SSHTransport holds a single SSH connection for the duration of a device
// collection cycle and runs one command per session (spec §4.2 steps 2-3,
// §5 "one connection held for a bounded unit of work").
type SSHTransport struct {
	client  *ssh.Client
	parser  StructuredParser
	timeout time.Duration
}

func DialSSH(ctx context.Context, host, username, password string, timeout time.Duration, parser StructuredParser) (*SSHTransport, error) {
	if parser == nil {
		parser = UnsupportedParser{}
	}
	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	addr := host
	if !strings.Contains(addr, ":") {
		addr = addr + ":22"
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("deviceadapter: ssh dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("deviceadapter: ssh handshake %s: %w", addr, err)
	}

	return &SSHTransport{
		client:  ssh.NewClient(sshConn, chans, reqs),
		parser:  parser,
		timeout: timeout,
	}, nil
}

func (t *SSHTransport) Close() error {
	return t.client.Close()
}

func (t *SSHTransport) RunCommand(ctx context.Context, cmd string) ([]byte, bool, error) {
	out, err := t.runOnSession(ctx, cmd+" | json")
	if err == nil && looksJSON(out) {
		return out, true, nil
	}

	out, err = t.runOnSession(ctx, cmd)
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: ssh command %q: %w", cmd, err)
	}

	tree, err := t.parser.Parse(cmd, string(out))
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: structured parse %q: %w", cmd, err)
	}
	encoded, err := json.Marshal(tree)
	if err != nil {
		return nil, false, fmt.Errorf("deviceadapter: re-encode parsed output: %w", err)
	}
	return encoded, true, nil
}

func (t *SSHTransport) runOnSession(ctx context.Context, cmd string) ([]byte, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening ssh session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		session.Close()
		return nil, ctx.Err()
	}
}

func looksJSON(out []byte) bool {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}
