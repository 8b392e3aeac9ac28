// Package ledger issues and moves carbon credits on the CarbonCredit smart contract.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bluecarbon/internal/models"
)

var (
	ErrNotConfigured  = errors.New("ledger is not configured")
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrReverted       = errors.New("transaction reverted")
)

// Client signs contract transactions with the admin key.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	timeout  time.Duration
	logger   *zap.Logger
}

// Dial connects to the RPC endpoint and binds the contract.
func Dial(ctx context.Context, rpcURL, contractAddress, privateKeyHex string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" || contractAddress == "" || privateKeyHex == "" {
		return nil, ErrNotConfigured
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("contract address: %w", ErrInvalidAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(carbonCreditABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	address := common.HexToAddress(contractAddress)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		eth:      eth,
		contract: bind.NewBoundContract(address, parsed, eth, eth, eth),
		address:  address,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// IssueCredits mints amount credits to wallet for a submission and waits for the receipt.
func (c *Client) IssueCredits(ctx context.Context, wallet string, amount int64, submissionID uuid.UUID) (*models.LedgerTx, error) {
	to, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	receipt, err := c.transact(ctx, gasIssueCredits, methodIssueCredits, to, big.NewInt(amount), SubmissionIDToUint256(submissionID))
	if err != nil {
		return nil, err
	}

	c.logger.Info("credits issued",
		zap.String("submission_id", submissionID.String()),
		zap.String("wallet", to.Hex()),
		zap.Int64("amount", amount),
		zap.String("tx", receipt.Hash),
	)
	return receipt, nil
}

// RecordLocation anchors a submission's coordinates on chain as degrees × 1e7.
func (c *Client) RecordLocation(ctx context.Context, submissionID uuid.UUID, lat, lng float64) (*models.LocationOnChain, error) {
	latE7, lngE7 := CoordinateE7(lat), CoordinateE7(lng)

	receipt, err := c.transact(ctx, gasRecordLocation, methodRecordLocation,
		SubmissionIDToUint256(submissionID), big.NewInt(latE7), big.NewInt(lngE7))
	if err != nil {
		return nil, err
	}

	return &models.LocationOnChain{
		TxHash:      receipt.Hash,
		BlockNumber: receipt.BlockNumber,
		LatE7:       latE7,
		LngE7:       lngE7,
	}, nil
}

// Transfer moves credits from the admin account to wallet.
func (c *Client) Transfer(ctx context.Context, wallet string, amount int64) (*models.LedgerTx, error) {
	to, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return c.transact(ctx, gasTransfer, methodTransfer, to, big.NewInt(amount))
}

// Balance returns the credit balance of wallet.
func (c *Client) Balance(ctx context.Context, wallet string) (*big.Int, error) {
	addr, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodBalance, addr); err != nil {
		return nil, fmt.Errorf("%s: %w", methodBalance, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", methodBalance)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Ping checks the RPC endpoint by reading the latest block number.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eth.BlockNumber(ctx)
	return err
}

// Close closes the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) transact(ctx context.Context, gasLimit uint64, method string, args ...interface{}) (*models.LedgerTx, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gasLimit

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}

	return &models.LedgerTx{
		Hash:        receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// ParseAddress validates a 0x-prefixed hex wallet address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, ErrInvalidAddress
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// SubmissionIDToUint256 maps a submission UUID to the contract's uint256 id.
func SubmissionIDToUint256(id uuid.UUID) *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// CoordinateE7 converts degrees to the contract's fixed-point representation.
func CoordinateE7(deg float64) int64 {
	return int64(math.Round(deg * 1e7))
}
