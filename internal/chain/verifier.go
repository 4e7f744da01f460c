package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// VerifiedPlacement placeBet 交易的链上解码结果：钱包从签名恢复，参数从 calldata 解出，
// 一律不信任客户端提交的字段
type VerifiedPlacement struct {
	MatchExternalID string
	Pick            int
	Amount          float64
	Wallet          string // 统一小写
}

// VerifiedClaim claim 交易的链上解码结果
type VerifiedClaim struct {
	MatchExternalID string
	Wallet          string
}

// Verifier 按交易哈希回查并解码用户交易。与 Client 共用连接、ABI 与合约地址
type Verifier interface {
	VerifyPlaceBet(ctx context.Context, txHash string) (*VerifiedPlacement, error)
	VerifyClaim(ctx context.Context, txHash string) (*VerifiedClaim, error)
}

// TxVerifier Verifier 的生产实现
type TxVerifier struct {
	c *Client
}

// NewTxVerifier 创建交易校验器（复用已拨号的 Client）
func NewTxVerifier(c *Client) *TxVerifier {
	return &TxVerifier{c: c}
}

// VerifyPlaceBet 校验并解码一笔 placeBet 交易：
// 交易存在且已执行成功、目标为本合约、selector 为 placeBet，参数与发送方以链上数据为准
func (v *TxVerifier) VerifyPlaceBet(ctx context.Context, txHash string) (*VerifiedPlacement, error) {
	tx, sender, err := v.loadTx(ctx, txHash, "placeBet")
	if err != nil {
		return nil, err
	}
	method := v.c.parsed.Methods["placeBet"]
	vals, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return nil, fmt.Errorf("decode placeBet input: %w", err)
	}
	extID, _ := vals[0].(*big.Int)
	side, _ := vals[1].(uint8)
	amount, _ := vals[2].(*big.Int)
	if extID == nil || amount == nil {
		return nil, fmt.Errorf("placeBet 参数解码异常")
	}
	return &VerifiedPlacement{
		MatchExternalID: extID.String(),
		Pick:            int(side),
		Amount:          UnitsToAmount(amount),
		Wallet:          strings.ToLower(sender.Hex()),
	}, nil
}

// VerifyClaim 校验并解码一笔 claim 交易
func (v *TxVerifier) VerifyClaim(ctx context.Context, txHash string) (*VerifiedClaim, error) {
	tx, sender, err := v.loadTx(ctx, txHash, "claim")
	if err != nil {
		return nil, err
	}
	method := v.c.parsed.Methods["claim"]
	vals, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return nil, fmt.Errorf("decode claim input: %w", err)
	}
	extID, _ := vals[0].(*big.Int)
	if extID == nil {
		return nil, fmt.Errorf("claim 参数解码异常")
	}
	return &VerifiedClaim{
		MatchExternalID: extID.String(),
		Wallet:          strings.ToLower(sender.Hex()),
	}, nil
}

// loadTx 公共校验：取交易与回执，确认执行成功、目标地址与 selector 正确，并恢复发送方
func (v *TxVerifier) loadTx(ctx context.Context, txHash, methodName string) (*types.Transaction, common.Address, error) {
	var zero common.Address
	hash := common.HexToHash(txHash)

	tx, pending, err := v.c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, zero, fmt.Errorf("tx not found %s: %w", txHash, err)
	}
	if pending {
		return nil, zero, fmt.Errorf("tx 尚未上链: %s", txHash)
	}
	receipt, err := v.c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, zero, fmt.Errorf("receipt not found %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, zero, fmt.Errorf("tx 执行失败: %s", txHash)
	}
	if tx.To() == nil || *tx.To() != v.c.contract {
		return nil, zero, fmt.Errorf("tx 目标地址不是本合约: %s", txHash)
	}
	data := tx.Data()
	method := v.c.parsed.Methods[methodName]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, zero, fmt.Errorf("tx 不是 %s 调用: %s", methodName, txHash)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(v.c.chainID), tx)
	if err != nil {
		return nil, zero, fmt.Errorf("recover sender: %w", err)
	}
	return tx, sender, nil
}
