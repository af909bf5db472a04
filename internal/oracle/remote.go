package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultEndpoint is the base URL used when none is configured.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

const maxResponseBytes = 4 << 20

// Remote interprets sentences with a hosted language model. Requests are
// never retried; consecutive failures open a circuit breaker shared by all
// sessions of the same Remote.
type Remote struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	log      zerolog.Logger
	breaker  *gobreaker.CircuitBreaker
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithHTTPClient makes every session use c instead of a private transport.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l zerolog.Logger) RemoteOption {
	return func(r *Remote) { r.log = l }
}

// NewRemote returns a Remote for the given endpoint and model. Empty values
// fall back to DefaultEndpoint and DefaultModel.
func NewRemote(endpoint, model, apiKey string, opts ...RemoteOption) *Remote {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	r := &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "oracle.remote").Logger()
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "oracle",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return r
}

// Open implements Oracle.
func (r *Remote) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if r.apiKey == "" && r.endpoint == DefaultEndpoint {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}
	s := &remoteSession{remote: r, client: r.client}
	if s.client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		s.transport = tr
		s.client = &http.Client{Transport: tr}
	}
	return s, nil
}

type remoteSession struct {
	remote    *Remote
	client    *http.Client
	transport *http.Transport
}

func (s *remoteSession) Close() error {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	return nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Interpret implements Session.
func (s *remoteSession) Interpret(ctx context.Context, chunk string, snap Snapshot) ([]Candidate, error) {
	prompt, err := buildPrompt(chunk, snap)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	requestID := uuid.New().String()
	log := s.remote.log.With().Str("request_id", requestID).Int("sentence", snap.Index).Logger()

	raw, err := s.remote.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, requestID, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Debug().Msg("circuit breaker rejected request")
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw.([]byte), &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformed, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: response has no content", ErrMalformed)
	}
	text := stripFence(resp.Candidates[0].Content.Parts[0].Text)
	log.Debug().Str("text", text).Msg("model answered")

	wire, err := decodeAnswer([]byte(text))
	if err != nil {
		return nil, err
	}
	return DecodeCandidates(wire)
}

func (s *remoteSession) post(ctx context.Context, requestID string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", s.remote.endpoint, s.remote.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if s.remote.apiKey != "" {
		req.Header.Set("x-goog-api-key", s.remote.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// decodeAnswer accepts either a bare candidate list or an object with a
// "candidates" field.
func decodeAnswer(data []byte) ([]WireCandidate, error) {
	var list []WireCandidate
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Unsupported bool            `json:"unsupported"`
		Candidates  []WireCandidate `json:"candidates"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj.Unsupported {
		return nil, ErrUnsupported
	}
	return obj.Candidates, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const promptHeader = `You translate one English sentence into one fragment of a small typed program.
Types: Integer, Float, Bool, String, Void (return type only), Array(T).
Answer with JSON only: a list of {"confidence": 0..1, "fragment": NODE}, or {"unsupported": true}.
NODE kinds: function{name, params[{name,type}], returns, body[]}, variable{name, type, init},
assign{name, declare?, value}, call{name, args}, if{cond, then[], else[]}, loop{cond?, body[]},
return{value?}, print{value}, input{name, declare?, prompt}.
EXPR: {"int":n} {"float":x} {"bool":b} {"string":s} {"var":name} {"op":"+","left":EXPR,"right":EXPR}
{"call":name,"args":[EXPR]}. Operators: + - * / % == != < <= > >= and or.
Use "declare" with a type the first time a local variable is assigned.
`

type promptContext struct {
	Declarations []promptDecl `json:"declarations"`
	Locals       []promptVar  `json:"locals"`
	LastFunction string       `json:"last_function,omitempty"`
	LastValue    string       `json:"last_value,omitempty"`
}

type promptDecl struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind"`
	Type   string      `json:"type"`
	Params []WireParam `json:"params,omitempty"`
}

type promptVar struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func buildPrompt(chunk string, snap Snapshot) (string, error) {
	pc := promptContext{LastFunction: snap.LastFunction, LastValue: snap.LastValue}
	for _, d := range snap.Decls {
		pd := promptDecl{Name: d.Name, Kind: "variable", Type: d.Type.String()}
		if d.Function {
			pd.Kind = "function"
			for _, p := range d.Params {
				pd.Params = append(pd.Params, WireParam{Name: p.Name, Type: p.Type.String()})
			}
		}
		pc.Declarations = append(pc.Declarations, pd)
	}
	for _, l := range snap.Locals {
		pc.Locals = append(pc.Locals, promptVar{Name: l.Name, Type: l.Type.String()})
	}
	ctxJSON, err := json.Marshal(pc)
	if err != nil {
		return "", fmt.Errorf("encoding prompt context: %w", err)
	}
	return promptHeader + "Program so far: " + string(ctxJSON) + "\nSentence: " + chunk + "\n", nil
}
