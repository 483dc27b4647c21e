// Package gateway is the HTTP client for the payment gateway's charge API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agendahub/internal/agenda"
)

// ChargeRequest describes one charge to create at the gateway.
type ChargeRequest struct {
	OrderID       string
	GrossAmount   int64
	Method        agenda.PaymentMethod
	Bank          string
	CustomerName  string
	CustomerEmail string
}

// ChargeResponse is the subset of the gateway's charge response the
// service stores on the registration.
type ChargeResponse struct {
	TransactionID     string
	TransactionStatus string
	Expiry            *time.Time
	Bank              string
	VANumber          string
	QRURL             string
}

// Client creates charges at the payment gateway.
type Client interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// HTTPClient talks to a midtrans-compatible charge endpoint using server-key
// basic auth.
type HTTPClient struct {
	baseURL   string
	serverKey string
	client    *http.Client
}

// NewHTTPClient builds a gateway client. httpClient may be nil.
func NewHTTPClient(baseURL, serverKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, serverKey: serverKey, client: httpClient}
}

type chargeBody struct {
	PaymentType        string              `json:"payment_type"`
	TransactionDetails transactionDetails  `json:"transaction_details"`
	BankTransfer       *bankTransferDetail `json:"bank_transfer,omitempty"`
	CustomerDetails    *customerDetails    `json:"customer_details,omitempty"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type bankTransferDetail struct {
	Bank string `json:"bank"`
}

type customerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type chargeReply struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	ExpiryTime        string `json:"expiry_time"`
	VANumbers         []struct {
		Bank     string `json:"bank"`
		VANumber string `json:"va_number"`
	} `json:"va_numbers"`
	Actions []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"actions"`
}

const expiryLayout = "2006-01-02 15:04:05"

// Charge creates a transaction at the gateway and normalizes the reply.
func (c *HTTPClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	body := chargeBody{
		PaymentType: string(req.Method),
		TransactionDetails: transactionDetails{
			OrderID:     req.OrderID,
			GrossAmount: req.GrossAmount,
		},
	}
	if req.Method == agenda.MethodBankTransfer {
		body.BankTransfer = &bankTransferDetail{Bank: req.Bank}
	}
	if req.CustomerName != "" || req.CustomerEmail != "" {
		body.CustomerDetails = &customerDetails{FirstName: req.CustomerName, Email: req.CustomerEmail}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/charge", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read charge response: %w", err)
	}

	var reply chargeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}
	// The gateway reports errors through status_code, not HTTP status.
	if reply.StatusCode != "200" && reply.StatusCode != "201" {
		return nil, fmt.Errorf("gateway rejected charge: %s %s", reply.StatusCode, reply.StatusMessage)
	}

	out := &ChargeResponse{
		TransactionID:     reply.TransactionID,
		TransactionStatus: reply.TransactionStatus,
	}
	if reply.ExpiryTime != "" {
		if t, err := time.ParseInLocation(expiryLayout, reply.ExpiryTime, time.Local); err == nil {
			out.Expiry = &t
		}
	}
	if len(reply.VANumbers) > 0 {
		out.Bank = reply.VANumbers[0].Bank
		out.VANumber = reply.VANumbers[0].VANumber
	}
	for _, a := range reply.Actions {
		if a.Name == "generate-qr-code" {
			out.QRURL = a.URL
			break
		}
	}
	return out, nil
}
