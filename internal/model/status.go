package model

// PipelineStatus 比赛链下流水线状态，只进不退；链上状态回读时通过 MapChainStatus 覆盖修正
type PipelineStatus int

const (
	StatusFetched        PipelineStatus = iota // 已从赛程源拉取
	StatusOddsCalculated                       // 已计算赔率
	StatusReadyForChain                        // 等待上链
	StatusOnChain                              // 已在合约创建
	StatusOpen                                 // 开盘可下注
	StatusClosed                               // 已封盘
	StatusResolved                             // 已结算
)

func (s PipelineStatus) String() string {
	switch s {
	case StatusFetched:
		return "Fetched"
	case StatusOddsCalculated:
		return "OddsCalculated"
	case StatusReadyForChain:
		return "ReadyForChain"
	case StatusOnChain:
		return "OnChain"
	case StatusOpen:
		return "Open"
	case StatusClosed:
		return "Closed"
	case StatusResolved:
		return "Resolved"
	default:
		return "Unknown"
	}
}

// OnChainStatus 合约侧比赛状态（uint8，与合约枚举一致）
type OnChainStatus uint8

const (
	ChainCreated  OnChainStatus = 0
	ChainOpen     OnChainStatus = 1
	ChainClosed   OnChainStatus = 2
	ChainResolved OnChainStatus = 3
)

// MapChainStatus 链上状态到流水线状态的映射。凡是链上回报了状态，
// 链下状态一律以该映射覆盖而不是盲目递增，使每次转移都能被链上真值自校正
func MapChainStatus(s OnChainStatus) PipelineStatus {
	switch s {
	case ChainCreated:
		return StatusOnChain
	case ChainOpen:
		return StatusOpen
	case ChainClosed:
		return StatusClosed
	case ChainResolved:
		return StatusResolved
	default:
		return StatusOnChain
	}
}

// BetStatus 注单状态，与合约语义对齐：
// Placed → Matched|Refunded →（结算后）Win|Lose →（赢后）Claimed
type BetStatus int

const (
	BetPlaced   BetStatus = 0 // 已提交，链上确认前
	BetMatched  BetStatus = 1 // 已被撮合（playAmount > 0）
	BetRefunded BetStatus = 2 // 全额退款（playAmount = 0）
	BetClaimed  BetStatus = 3 // 已领取
	BetWin      BetStatus = 4
	BetLose     BetStatus = 5
)

func (s BetStatus) String() string {
	switch s {
	case BetPlaced:
		return "Placed"
	case BetMatched:
		return "Matched"
	case BetRefunded:
		return "Refunded"
	case BetClaimed:
		return "Claimed"
	case BetWin:
		return "Win"
	case BetLose:
		return "Lose"
	default:
		return "Unknown"
	}
}

// 结算结果：0=平 1=主胜 2=客胜（与合约 resolveMatch 参数一致）
const (
	OutcomeDraw uint8 = 0
	OutcomeHome uint8 = 1
	OutcomeAway uint8 = 2
)

// ResultText 结算结果文本（Home/Away/Draw），存入 matches.result
func ResultText(outcome uint8) string {
	switch outcome {
	case OutcomeDraw:
		return "Draw"
	case OutcomeHome:
		return "Home"
	case OutcomeAway:
		return "Away"
	default:
		return "Unknown"
	}
}
