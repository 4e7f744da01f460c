package chain

import (
	"context"
	"math"
	"math/big"

	"BetOracle/internal/model"
)

// 合约金额为 6 位定点（USDB），赔率上链前放大 1000 倍取整
const (
	usdbDecimals  = 6
	oddsPrecision = 1000
)

// TxResult 状态变更调用的三分类结果（外加"已存在"的创建冲突）
type TxResult int

const (
	TxSent          TxResult = iota // 已上链并执行成功
	TxAlreadyExists                 // createMatch 冲突：比赛已存在
	TxBadStatus                     // 合约当前状态不允许该转移
	TxFailed                        // RPC错误/revert/超时，留待下个周期重试
)

func (r TxResult) String() string {
	switch r {
	case TxSent:
		return "Sent"
	case TxAlreadyExists:
		return "AlreadyExists"
	case TxBadStatus:
		return "BadStatus"
	case TxFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// TxResponse 状态变更调用的返回。Status 为链上当前状态：
// 成功时取调用后的目标状态，冲突时为回查结果（回查失败则为 nil）
type TxResponse struct {
	Result TxResult
	TxHash string
	Status *model.OnChainStatus
}

// MatchState 合约侧比赛当前状态（matches getter 的解码结果）
type MatchState struct {
	ExternalID  *big.Int
	OddsHome    float64
	OddsAway    float64
	TotalHome   float64
	TotalAway   float64
	MatchedHome float64
	MatchedAway float64
	Status      model.OnChainStatus
	Result      uint8
	Matched     bool
}

// OnChainBet 合约注单列表中的一条（临时值，不落库），链下 Bet 记录须向它收敛。
// Index 为该注单在合约列表中的位置，即链下连接键
type OnChainBet struct {
	User       string
	Amount     float64
	PlayAmount float64
	Side       uint8
	Status     uint8
	Index      int
}

// Gateway 链上合约能力接口。状态变更调用等待上链完成并分类结果；
// 读接口失败时调用方按"未找到/空列表"降级处理。生产实现见 Client，测试用内存假账本
type Gateway interface {
	CreateMatch(ctx context.Context, externalID *big.Int, oddsHome, oddsAway float64) TxResponse
	OpenMatch(ctx context.Context, externalID *big.Int) TxResponse
	CloseMatch(ctx context.Context, externalID *big.Int) TxResponse
	ResolveMatch(ctx context.Context, externalID *big.Int, result uint8) TxResponse
	// GetMatch 读取合约侧比赛状态，未找到时返回 (nil, nil)
	GetMatch(ctx context.Context, externalID *big.Int) (*MatchState, error)
	// GetBetsByMatch 按合约列表顺序返回全部注单
	GetBetsByMatch(ctx context.Context, externalID *big.Int) ([]OnChainBet, error)
}

// OddsToUnits 赔率转为链上定点整数（×1000，四舍五入远离零）
func OddsToUnits(odds float64) *big.Int {
	return big.NewInt(int64(math.Round(odds * oddsPrecision)))
}

// AmountToUnits 金额转为链上 6 位定点 *big.Int
func AmountToUnits(amount float64) *big.Int {
	if amount <= 0 {
		return big.NewInt(0)
	}
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(usdbDecimals), nil))
	a := new(big.Float).SetFloat64(amount)
	a.Mul(a, div)
	i, _ := a.Int(nil)
	return i
}

// UnitsToAmount 链上 6 位定点金额转回 float64
func UnitsToAmount(units *big.Int) float64 {
	if units == nil {
		return 0
	}
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(usdbDecimals), nil))
	f := new(big.Float).SetInt(units)
	f.Quo(f, div)
	v, _ := f.Float64()
	return v
}

// UnitsToOdds 链上定点赔率转回 float64
func UnitsToOdds(units *big.Int) float64 {
	if units == nil {
		return 0
	}
	f := new(big.Float).SetInt(units)
	f.Quo(f, big.NewFloat(oddsPrecision))
	v, _ := f.Float64()
	return v
}
