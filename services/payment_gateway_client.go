package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// VerifyOutcome classifies a gateway verification response.
type VerifyOutcome string

const (
	VerifySuccess         VerifyOutcome = "success"
	VerifyAlreadyVerified VerifyOutcome = "already_verified"
	VerifyFailed          VerifyOutcome = "failed"
)

// VerifyResult is what the gateway reports for a payment attempt. RefNumber is
// set only on success or already_verified.
type VerifyResult struct {
	Outcome   VerifyOutcome
	RefNumber string
	Message   string
}

// PaymentGateway abstracts the external payment provider. CreatePayment
// registers a payment intent and returns the gateway's track id; VerifyPayment
// confirms a returned payment; InquiryPayment re-checks settlement state for
// reconciliation.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal, callbackURL string) (trackID string, err error)
	VerifyPayment(ctx context.Context, trackID string) (*VerifyResult, error)
	InquiryPayment(ctx context.Context, trackID string) (*VerifyResult, error)
	PaymentURL(trackID string) string
}

// ZibalGateway talks to a Zibal-compatible IPG. Result code 100 means the
// payment verified, 201 means it was verified before (the caller should fall
// back to inquiry for the ref number).
type ZibalGateway struct {
	BaseURL    string
	PayBaseURL string
	Merchant   string
	Client     *http.Client
}

func NewZibalGateway(baseURL, payBaseURL, merchant string) *ZibalGateway {
	return &ZibalGateway{
		BaseURL:    baseURL,
		PayBaseURL: payBaseURL,
		Merchant:   merchant,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type zibalResponse struct {
	Result    int    `json:"result"`
	TrackID   int64  `json:"trackId"`
	RefNumber int64  `json:"refNumber"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
}

func (g *ZibalGateway) post(ctx context.Context, path string, payload map[string]interface{}) (*zibalResponse, error) {
	jsonData, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", g.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("gateway %s returned %d: %s", path, resp.StatusCode, string(body))
		return nil, fmt.Errorf("gateway %s failed: %d", path, resp.StatusCode)
	}

	var out zibalResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *ZibalGateway) CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal, callbackURL string) (string, error) {
	resp, err := g.post(ctx, "/v1/request", map[string]interface{}{
		"merchant":    g.Merchant,
		"amount":      amount.IntPart(),
		"orderId":     orderID,
		"callbackUrl": callbackURL,
	})
	if err != nil {
		return "", err
	}
	if resp.Result != 100 {
		log.Printf("gateway rejected payment request for order %s: result=%d message=%s", orderID, resp.Result, resp.Message)
		return "", ErrGatewayRejected
	}
	return fmt.Sprintf("%d", resp.TrackID), nil
}

func (g *ZibalGateway) VerifyPayment(ctx context.Context, trackID string) (*VerifyResult, error) {
	resp, err := g.post(ctx, "/v1/verify", map[string]interface{}{
		"merchant": g.Merchant,
		"trackId":  trackID,
	})
	if err != nil {
		return nil, err
	}
	switch resp.Result {
	case 100:
		return &VerifyResult{Outcome: VerifySuccess, RefNumber: fmt.Sprintf("%d", resp.RefNumber), Message: resp.Message}, nil
	case 201:
		return &VerifyResult{Outcome: VerifyAlreadyVerified, Message: resp.Message}, nil
	default:
		return &VerifyResult{Outcome: VerifyFailed, Message: resp.Message}, nil
	}
}

func (g *ZibalGateway) InquiryPayment(ctx context.Context, trackID string) (*VerifyResult, error) {
	resp, err := g.post(ctx, "/v1/inquiry", map[string]interface{}{
		"merchant": g.Merchant,
		"trackId":  trackID,
	})
	if err != nil {
		return nil, err
	}
	// Inquiry status 1 or 2 means the money settled.
	if resp.Result == 100 && (resp.Status == 1 || resp.Status == 2) {
		return &VerifyResult{Outcome: VerifySuccess, RefNumber: fmt.Sprintf("%d", resp.RefNumber), Message: resp.Message}, nil
	}
	return &VerifyResult{Outcome: VerifyFailed, Message: resp.Message}, nil
}

func (g *ZibalGateway) PaymentURL(trackID string) string {
	return g.PayBaseURL + "/start/" + trackID
}

// MockGateway is an in-process gateway for tests and local development. Every
// created payment is settled unless a failure is injected for its order id.
type MockGateway struct {
	mu       sync.Mutex
	nextID   int64
	byTrack  map[string]string // track id -> order id
	failNext map[string]bool   // order id -> fail verification
	verified map[string]bool   // track id -> verify already consumed
	down     bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		byTrack:  make(map[string]string),
		failNext: make(map[string]bool),
		verified: make(map[string]bool),
	}
}

// FailOrder makes verification fail for the given order id.
func (g *MockGateway) FailOrder(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[orderID] = true
}

// SetDown makes every call return a transport error until cleared.
func (g *MockGateway) SetDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

func (g *MockGateway) CreatePayment(_ context.Context, orderID string, _ decimal.Decimal, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return "", fmt.Errorf("gateway unreachable")
	}
	g.nextID++
	track := fmt.Sprintf("mock-%d", g.nextID)
	g.byTrack[track] = orderID
	return track, nil
}

func (g *MockGateway) VerifyPayment(_ context.Context, trackID string) (*VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return nil, fmt.Errorf("gateway unreachable")
	}
	orderID, ok := g.byTrack[trackID]
	if !ok {
		return &VerifyResult{Outcome: VerifyFailed, Message: "unknown track id"}, nil
	}
	if g.failNext[orderID] {
		return &VerifyResult{Outcome: VerifyFailed, Message: "payment failed"}, nil
	}
	if g.verified[trackID] {
		return &VerifyResult{Outcome: VerifyAlreadyVerified, Message: "previously verified"}, nil
	}
	g.verified[trackID] = true
	return &VerifyResult{Outcome: VerifySuccess, RefNumber: "ref-" + trackID, Message: "ok"}, nil
}

func (g *MockGateway) InquiryPayment(_ context.Context, trackID string) (*VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return nil, fmt.Errorf("gateway unreachable")
	}
	orderID, ok := g.byTrack[trackID]
	if !ok || g.failNext[orderID] {
		return &VerifyResult{Outcome: VerifyFailed, Message: "not settled"}, nil
	}
	if g.verified[trackID] {
		return &VerifyResult{Outcome: VerifySuccess, RefNumber: "ref-" + trackID, Message: "settled"}, nil
	}
	return &VerifyResult{Outcome: VerifyFailed, Message: "not settled"}, nil
}

func (g *MockGateway) PaymentURL(trackID string) string {
	return "https://gateway.test/start/" + trackID
}
