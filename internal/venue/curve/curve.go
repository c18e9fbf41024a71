// Package curve quotes a Curve-style stableswap pool over JSON-RPC and builds
// swap calldata for dry-run settlement.
package curve

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

const poolABI = `[
	{"name":"get_dy","type":"function","stateMutability":"view",
	 "inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"exchange","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"},{"name":"min_dy","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// ContractCaller is the read-only subset of an RPC client.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return client, nil
}

func parsePool(pool string) (common.Address, abi.ABI, error) {
	if !common.IsHexAddress(pool) {
		return common.Address{}, abi.ABI{}, fmt.Errorf("%w: pool address %q", types.ErrInvalidConfig, pool)
	}
	parsed, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		return common.Address{}, abi.ABI{}, fmt.Errorf("parse pool abi: %w", err)
	}
	return common.HexToAddress(pool), parsed, nil
}

// QuoteSource calls get_dy on the pool at the latest block.
type QuoteSource struct {
	caller ContractCaller
	pool   common.Address
	abi    abi.ABI
	logger *zap.Logger
}

// NewQuoteSource creates a quote source for the pool at address pool.
func NewQuoteSource(caller ContractCaller, pool string, logger *zap.Logger) (*QuoteSource, error) {
	addr, parsed, err := parsePool(pool)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteSource{caller: caller, pool: addr, abi: parsed, logger: logger}, nil
}

// Quote returns get_dy(in, out, amount).
func (q *QuoteSource) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	data, err := q.abi.Pack("get_dy", big.NewInt(int64(in)), big.NewInt(int64(out)), new(big.Int).SetUint64(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: pack get_dy: %w", types.ErrQuoteUnavailable, err)
	}

	raw, err := q.caller.CallContract(ctx, ethereum.CallMsg{To: &q.pool, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: eth_call: %w", types.ErrQuoteUnavailable, err)
	}

	values, err := q.abi.Unpack("get_dy", raw)
	if err != nil {
		return 0, fmt.Errorf("%w: unpack get_dy: %w", types.ErrQuoteUnavailable, err)
	}
	dy, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: get_dy returned %T", types.ErrQuoteUnavailable, values[0])
	}
	if !dy.IsUint64() {
		return 0, fmt.Errorf("%w: get_dy result %s out of range", types.ErrQuoteUnavailable, dy)
	}

	q.logger.Debug("get_dy",
		zap.String("pool", q.pool.Hex()),
		zap.Int("i", in),
		zap.Int("j", out),
		zap.Uint64("dx", amount),
		zap.Uint64("dy", dy.Uint64()),
	)

	return dy.Uint64(), nil
}

// DryRunExecutor encodes exchange calldata and derives a settlement reference
// from its hash without signing or broadcasting anything.
type DryRunExecutor struct {
	pool   common.Address
	abi    abi.ABI
	nonce  atomic.Uint64
	logger *zap.Logger
}

// NewDryRunExecutor creates a dry-run executor for the pool at address pool.
func NewDryRunExecutor(pool string, logger *zap.Logger) (*DryRunExecutor, error) {
	addr, parsed, err := parsePool(pool)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunExecutor{pool: addr, abi: parsed, logger: logger}, nil
}

// Execute returns keccak256(pool || calldata || nonce) as a hex reference.
func (e *DryRunExecutor) Execute(ctx context.Context, in, out int, amount, minOut uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrExecutionFailed, err)
	}

	data, err := e.Calldata(in, out, amount, minOut)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrExecutionFailed, err)
	}

	nonce := binary.BigEndian.AppendUint64(nil, e.nonce.Add(1))
	ref := crypto.Keccak256Hash(e.pool.Bytes(), data, nonce).Hex()

	e.logger.Info("dry-run exchange",
		zap.String("pool", e.pool.Hex()),
		zap.Int("i", in),
		zap.Int("j", out),
		zap.Uint64("dx", amount),
		zap.Uint64("min_dy", minOut),
		zap.String("ref", ref),
	)

	return ref, nil
}

// Calldata encodes exchange(in, out, amount, minOut).
func (e *DryRunExecutor) Calldata(in, out int, amount, minOut uint64) ([]byte, error) {
	data, err := e.abi.Pack("exchange",
		big.NewInt(int64(in)),
		big.NewInt(int64(out)),
		new(big.Int).SetUint64(amount),
		new(big.Int).SetUint64(minOut),
	)
	if err != nil {
		return nil, fmt.Errorf("pack exchange: %w", err)
	}
	return data, nil
}
