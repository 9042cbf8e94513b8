package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/utxo-indexer/pkg/block"
)

// RESTSource reads blocks from a proxy serving GET <base>/getblock/<height>.
type RESTSource struct {
	base   string
	client *http.Client
}

// NewREST creates a REST source rooted at base.
func NewREST(base string, timeout time.Duration) *RESTSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTSource{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// proxyError is the error body the proxy returns in place of a block.
type proxyError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchBlock fetches the block at height. A 404, or an error body carrying
// the node's out-of-range code, means the block does not exist yet.
func (s *RESTSource) FetchBlock(ctx context.Context, height int64) (*block.Block, error) {
	if height < 0 {
		return nil, fmt.Errorf("invalid height %d", height)
	}
	url := s.base + "/getblock/" + strconv.FormatInt(height, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", height, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlockNotAvailable
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", height, err)
	}

	var pe proxyError
	if jsonAPI.Unmarshal(data, &pe) == nil && pe.Error != nil {
		if pe.Error.Code == heightOutOfRange {
			return nil, ErrBlockNotAvailable
		}
		return nil, fmt.Errorf("get block %d: proxy error %d: %s", height, pe.Error.Code, pe.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get block %d: http status %d", height, resp.StatusCode)
	}
	return decodeBlock(data, height)
}

// pushTxRequest and pushTxResponse are the proxy's POST /pushtx bodies.
type pushTxRequest struct {
	TxData string `json:"txdata"`
}

type pushTxResponse struct {
	TxID  string `json:"txid"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Broadcast relays rawTx through the proxy's POST <base>/pushtx.
func (s *RESTSource) Broadcast(ctx context.Context, rawTx string) (string, error) {
	body, err := jsonAPI.Marshal(pushTxRequest{TxData: rawTx})
	if err != nil {
		return "", fmt.Errorf("marshal pushtx: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/pushtx", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pushtx: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read pushtx response: %w", err)
	}
	var out pushTxResponse
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("pushtx: http status %d: %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrTxRejected, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pushtx: http status %d", resp.StatusCode)
	}
	return strings.TrimSpace(out.TxID), nil
}
