package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bloblets/arena-backend/pkg/config"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
)

// IndexerAdapter verifies transactions through a hosted chain indexer's REST
// API instead of a node RPC.
type IndexerAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewIndexerAdapter builds an adapter from configuration.
func NewIndexerAdapter(cfg config.ChainConfig) (*IndexerAdapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.IndexerURL), "/")
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chain indexer url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chain indexer url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IndexerAdapter{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type indexerTransaction struct {
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	Sender      string     `json:"sender"`
	Recipient   string     `json:"recipient"`
	Amount      string     `json:"amount"`
	FinalizedAt *time.Time `json:"finalized_at"`
}

// VerifyTransaction fetches the transaction and checks it against the
// expectation. Indexer outages surface as dependency errors so callers leave
// the entity pending and retry.
func (a *IndexerAdapter) VerifyTransaction(ctx context.Context, txRef string, expected Expected) (*VerifiedTransaction, error) {
	ref := strings.TrimSpace(txRef)
	if ref == "" {
		return nil, ErrTransactionNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/transactions/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building indexer request")
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling chain indexer")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrTransactionNotFound
	case resp.StatusCode >= 500:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("chain indexer returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unexpected indexer status %d", resp.StatusCode))
	}

	var tx indexerTransaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding indexer response")
	}

	switch strings.ToLower(tx.Status) {
	case "confirmed", "finalized":
	case "pending":
		return nil, ErrTransactionPending
	case "failed", "reverted":
		return nil, ErrTransactionFailed
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unknown transaction status %q", tx.Status))
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parsing transaction amount")
	}

	verified := &VerifiedTransaction{
		Reference: tx.Reference,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    amount,
	}
	if tx.FinalizedAt != nil {
		verified.FinalizedAt = *tx.FinalizedAt
	}

	if err := Match(verified, expected); err != nil {
		return nil, err
	}
	return verified, nil
}
