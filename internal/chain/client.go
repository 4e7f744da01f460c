package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"BetOracle/internal/config"
	"BetOracle/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// 博彩合约最小 ABI：oracle 调用 + 只读查询 + 用户侧 placeBet/claim（验签解码用）
const bettingABI = `[
	{"name":"createMatch","type":"function","inputs":[
		{"name":"externalId","type":"uint256"},
		{"name":"oddsHome","type":"uint256"},
		{"name":"oddsAway","type":"uint256"}
	],"outputs":[]},
	{"name":"openMatch","type":"function","inputs":[{"name":"externalId","type":"uint256"}],"outputs":[]},
	{"name":"closeMatch","type":"function","inputs":[{"name":"externalId","type":"uint256"}],"outputs":[]},
	{"name":"resolveMatch","type":"function","inputs":[
		{"name":"externalId","type":"uint256"},
		{"name":"result","type":"uint8"}
	],"outputs":[]},
	{"name":"placeBet","type":"function","inputs":[
		{"name":"externalId","type":"uint256"},
		{"name":"side","type":"uint8"},
		{"name":"amount","type":"uint256"}
	],"outputs":[]},
	{"name":"claim","type":"function","inputs":[{"name":"externalId","type":"uint256"}],"outputs":[]},
	{"name":"matches","type":"function","stateMutability":"view","inputs":[{"name":"externalId","type":"uint256"}],"outputs":[
		{"name":"externalId","type":"uint256"},
		{"name":"oddsHome","type":"uint256"},
		{"name":"oddsAway","type":"uint256"},
		{"name":"totalHome","type":"uint256"},
		{"name":"totalAway","type":"uint256"},
		{"name":"matchedHome","type":"uint256"},
		{"name":"matchedAway","type":"uint256"},
		{"name":"status","type":"uint8"},
		{"name":"result","type":"uint8"},
		{"name":"matched","type":"bool"}
	]},
	{"name":"getBetsByMatch","type":"function","stateMutability":"view","inputs":[{"name":"externalId","type":"uint256"}],"outputs":[
		{"name":"bets","type":"tuple[]","components":[
			{"name":"user","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"playAmount","type":"uint256"},
			{"name":"side","type":"uint8"},
			{"name":"status","type":"uint8"}
		]}
	]}
]`

// Client Gateway 的生产实现：单连接 ethclient，oracle 私钥签 LegacyTx 串行提交。
// 状态变更调用先 estimateGas 暴露 revert 原因以便分类，再发送并轮询回执
type Client struct {
	client          *ethclient.Client
	parsed          abi.ABI
	contract        common.Address
	key             *ecdsa.PrivateKey
	from            common.Address
	chainID         *big.Int
	gasLimit        uint64
	receiptAttempts int
	receiptInterval time.Duration
	logger          *logrus.Logger
}

// NewClient 创建链上客户端（启动时拨号一次，oracle 调用串行复用连接）
func NewClient(cfg *config.ChainConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.RPCURL == "" || cfg.ContractAddress == "" || cfg.OraclePrivateKey == "" {
		return nil, fmt.Errorf("rpc_url, contract_address, oracle_private_key 必填")
	}
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(bettingABI))
	if err != nil {
		return nil, err
	}

	keyHex := strings.TrimPrefix(cfg.OraclePrivateKey, "0x")
	keyBuf, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode oracle key: %w", err)
	}
	key, err := crypto.ToECDSA(keyBuf)
	if err != nil {
		return nil, fmt.Errorf("to ecdsa: %w", err)
	}

	return &Client{
		client:          client,
		parsed:          parsed,
		contract:        common.HexToAddress(cfg.ContractAddress),
		key:             key,
		from:            crypto.PubkeyToAddress(key.PublicKey),
		chainID:         big.NewInt(cfg.ChainID),
		gasLimit:        cfg.GasLimit,
		receiptAttempts: cfg.ReceiptAttempts,
		receiptInterval: time.Duration(cfg.ReceiptInterval) * time.Second,
		logger:          logger,
	}, nil
}

// Close 关闭底层RPC连接
func (c *Client) Close() { c.client.Close() }

func (c *Client) CreateMatch(ctx context.Context, externalID *big.Int, oddsHome, oddsAway float64) TxResponse {
	txHash, err := c.submit(ctx, "createMatch", externalID, OddsToUnits(oddsHome), OddsToUnits(oddsAway))
	if err == nil {
		st := model.ChainCreated
		return TxResponse{Result: TxSent, TxHash: txHash, Status: &st}
	}
	if containsFold(err.Error(), "match exists") {
		return TxResponse{Result: TxAlreadyExists, Status: c.tryGetStatus(ctx, externalID)}
	}
	c.logger.WithError(err).WithField("external_id", externalID.String()).Error("createMatch failed")
	return TxResponse{Result: TxFailed}
}

func (c *Client) OpenMatch(ctx context.Context, externalID *big.Int) TxResponse {
	txHash, err := c.submit(ctx, "openMatch", externalID)
	if err == nil {
		st := model.ChainOpen
		return TxResponse{Result: TxSent, TxHash: txHash, Status: &st}
	}
	if containsFold(err.Error(), "InvalidMatchStatus") {
		return TxResponse{Result: TxBadStatus, Status: c.tryGetStatus(ctx, externalID)}
	}
	c.logger.WithError(err).WithField("external_id", externalID.String()).Error("openMatch failed")
	return TxResponse{Result: TxFailed}
}

func (c *Client) CloseMatch(ctx context.Context, externalID *big.Int) TxResponse {
	txHash, err := c.submit(ctx, "closeMatch", externalID)
	if err == nil {
		st := model.ChainClosed
		return TxResponse{Result: TxSent, TxHash: txHash, Status: &st}
	}
	if containsFold(err.Error(), "InvalidMatchStatus") {
		return TxResponse{Result: TxBadStatus, Status: c.tryGetStatus(ctx, externalID)}
	}
	c.logger.WithError(err).WithField("external_id", externalID.String()).Error("closeMatch failed")
	return TxResponse{Result: TxFailed}
}

func (c *Client) ResolveMatch(ctx context.Context, externalID *big.Int, result uint8) TxResponse {
	txHash, err := c.submit(ctx, "resolveMatch", externalID, result)
	if err == nil {
		st := model.ChainResolved
		return TxResponse{Result: TxSent, TxHash: txHash, Status: &st}
	}
	if containsFold(err.Error(), "InvalidMatchStatus") {
		return TxResponse{Result: TxBadStatus, Status: c.tryGetStatus(ctx, externalID)}
	}
	c.logger.WithError(err).WithField("external_id", externalID.String()).Error("resolveMatch failed")
	return TxResponse{Result: TxFailed}
}

// GetMatch 读取合约侧比赛状态。合约未创建该比赛时 externalId 为 0，返回 (nil, nil)
func (c *Client) GetMatch(ctx context.Context, externalID *big.Int) (*MatchState, error) {
	res, err := c.call(ctx, "matches", externalID)
	if err != nil {
		c.logger.WithError(err).WithField("external_id", externalID.String()).Warn("fetch match state failed")
		return nil, err
	}
	out, err := c.parsed.Unpack("matches", res)
	if err != nil {
		return nil, fmt.Errorf("unpack matches: %w", err)
	}
	if len(out) < 10 {
		return nil, fmt.Errorf("matches 返回字段数 %d", len(out))
	}
	extID, _ := out[0].(*big.Int)
	if extID == nil || extID.Sign() == 0 {
		return nil, nil
	}
	return &MatchState{
		ExternalID:  extID,
		OddsHome:    UnitsToOdds(out[1].(*big.Int)),
		OddsAway:    UnitsToOdds(out[2].(*big.Int)),
		TotalHome:   UnitsToAmount(out[3].(*big.Int)),
		TotalAway:   UnitsToAmount(out[4].(*big.Int)),
		MatchedHome: UnitsToAmount(out[5].(*big.Int)),
		MatchedAway: UnitsToAmount(out[6].(*big.Int)),
		Status:      model.OnChainStatus(out[7].(uint8)),
		Result:      out[8].(uint8),
		Matched:     out[9].(bool),
	}, nil
}

// GetBetsByMatch 按合约列表顺序返回注单，金额换算回 float64，位置即列表下标
func (c *Client) GetBetsByMatch(ctx context.Context, externalID *big.Int) ([]OnChainBet, error) {
	res, err := c.call(ctx, "getBetsByMatch", externalID)
	if err != nil {
		c.logger.WithError(err).WithField("external_id", externalID.String()).Warn("fetch betsByMatch failed")
		return nil, err
	}
	out, err := c.parsed.Unpack("getBetsByMatch", res)
	if err != nil {
		return nil, fmt.Errorf("unpack getBetsByMatch: %w", err)
	}
	raw, ok := out[0].([]struct {
		User       common.Address `json:"user"`
		Amount     *big.Int       `json:"amount"`
		PlayAmount *big.Int       `json:"playAmount"`
		Side       uint8          `json:"side"`
		Status     uint8          `json:"status"`
	})
	if !ok {
		return nil, fmt.Errorf("getBetsByMatch 返回类型不匹配")
	}
	bets := make([]OnChainBet, 0, len(raw))
	for i, b := range raw {
		bets = append(bets, OnChainBet{
			User:       b.User.Hex(),
			Amount:     UnitsToAmount(b.Amount),
			PlayAmount: UnitsToAmount(b.PlayAmount),
			Side:       b.Side,
			Status:     b.Status,
			Index:      i,
		})
	}
	return bets, nil
}

// submit 打包并提交一次状态变更调用，等待回执确认执行成功。
// 先 estimateGas：合约 revert 原因（match exists / InvalidMatchStatus）在此处以错误字符串暴露
func (c *Client) submit(ctx context.Context, method string, args ...interface{}) (string, error) {
	data, err := c.parsed.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	if _, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.contract, Data: data}); err != nil {
		return "", fmt.Errorf("estimate %s: %w", method, err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.gasLimit,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	txHash := signed.Hash()
	// 等待交易上链并确认执行成功，避免链上 revert 但链下仍推进状态
	for i := 0; i < c.receiptAttempts; i++ {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("等待交易确认: %w", ctx.Err())
			case <-time.After(c.receiptInterval):
				continue
			}
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return "", fmt.Errorf("%s 已上链但执行失败(revert)，tx: %s", method, txHash.Hex())
		}
		return txHash.Hex(), nil
	}
	return "", fmt.Errorf("等待交易确认超时，tx: %s", txHash.Hex())
}

// call 只读合约调用
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return res, nil
}

// tryGetStatus 冲突后回查链上当前状态作为新的本地真值，查不到返回 nil
func (c *Client) tryGetStatus(ctx context.Context, externalID *big.Int) *model.OnChainStatus {
	state, err := c.GetMatch(ctx, externalID)
	if err != nil || state == nil {
		return nil
	}
	st := state.Status
	return &st
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
