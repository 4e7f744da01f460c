package model

import (
	"time"

	"gorm.io/datatypes"
)

// Match 对应 matches 表，一场可下注的比赛。
// ExternalId 为赛程源分配的ID，需为纯数字才能作为合约 uint256 寻址；全表唯一。
// 赔率在离开 ReadyForChain 之后不可变；记录只追加不删除（注单历史依赖它）
type Match struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	ExternalID string         `gorm:"column:external_id;type:varchar(64);uniqueIndex;not null;comment:赛程源ID（链上寻址用）"`
	HomeTeam   string         `gorm:"column:home_team;type:varchar(64);not null;comment:主队"`
	AwayTeam   string         `gorm:"column:away_team;type:varchar(64);not null;comment:客队"`
	StartTime  time.Time      `gorm:"column:start_time;type:timestamp;not null;comment:开赛时间UTC"`
	OddsHome   float64        `gorm:"column:odds_home;type:numeric(10,3);default:0;comment:主胜赔率"`
	OddsAway   float64        `gorm:"column:odds_away;type:numeric(10,3);default:0;comment:客胜赔率"`
	Status     PipelineStatus `gorm:"column:status;type:smallint;default:0;comment:流水线状态"`
	Result     *string        `gorm:"column:result;type:varchar(16);comment:赛果 Home/Away/Draw"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`

	Bets []Bet `gorm:"foreignKey:MatchID"`
}

// Bet 对应 bets 表，一名用户在一场比赛上的持仓。
// (match_id, on_chain_index) 唯一——它是链下记录与链上权威条目的连接键；
// blockchain_tx_hash 可空唯一（对账补建的记录无哈希），一旦写入不得挂到第二条注单。
// 并发下单的失败方必须以约束冲突浮出，而不是悄悄复制资金
type Bet struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	BetUUID          string    `gorm:"column:bet_uuid;type:varchar(64);uniqueIndex;not null;comment:对外注单ID"`
	UserWallet       string    `gorm:"column:user_wallet;type:varchar(64);not null;index;comment:用户钱包地址（统一小写）"`
	MatchID          uint64    `gorm:"column:match_id;type:bigint;not null;uniqueIndex:uk_match_chain_index;comment:关联比赛ID"`
	Amount           float64   `gorm:"column:amount;type:numeric(18,6);not null;comment:下注金额"`
	PlayAmount       float64   `gorm:"column:play_amount;type:numeric(18,6);default:0;comment:实际撮合金额（可小于下注额）"`
	OnChainIndex     int       `gorm:"column:on_chain_index;type:int;not null;uniqueIndex:uk_match_chain_index;comment:合约注单列表位置"`
	Pick             int       `gorm:"column:pick;type:smallint;not null;comment:方向 1=主 2=客"`
	OddsAtMoment     float64   `gorm:"column:odds_at_moment;type:numeric(10,3);not null;comment:下注时锁定赔率"`
	BlockchainTxHash *string   `gorm:"column:blockchain_tx_hash;type:varchar(66);uniqueIndex;comment:下注交易哈希（对账补建的为空）"`
	BetTime          time.Time `gorm:"column:bet_time;type:timestamp;not null;comment:下注时间"`
	Status           BetStatus `gorm:"column:status;type:smallint;default:0;comment:注单状态"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// EloSnapshot 对应 elo_snapshots 表，按日落库的球队Elo评分，赔率计算取赛前最近一条
type EloSnapshot struct {
	ID   uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Club string    `gorm:"column:club;type:varchar(64);not null;uniqueIndex:uk_club_date;comment:球队（归一化名称）"`
	Date time.Time `gorm:"column:date;type:date;not null;uniqueIndex:uk_club_date;comment:快照日期"`
	Elo  float64   `gorm:"column:elo;type:numeric(10,2);not null;comment:Elo评分"`
}

// ChainCallLog 对应 chain_call_logs 表，每次 oracle 状态变更调用的审计记录。
// Payload 保存网关返回的原始响应，方便排查链上与链下不一致的问题
type ChainCallLog struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Phase      string         `gorm:"column:phase;type:varchar(16);not null;comment:阶段 create/open/close/resolve"`
	ExternalID string         `gorm:"column:external_id;type:varchar(64);not null;index;comment:比赛外部ID"`
	Result     string         `gorm:"column:result;type:varchar(16);not null;comment:调用结果"`
	TxHash     *string        `gorm:"column:tx_hash;type:varchar(66);comment:交易哈希"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb;comment:原始响应"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
}

func (Match) TableName() string        { return "matches" }
func (Bet) TableName() string          { return "bets" }
func (EloSnapshot) TableName() string  { return "elo_snapshots" }
func (ChainCallLog) TableName() string { return "chain_call_logs" }
