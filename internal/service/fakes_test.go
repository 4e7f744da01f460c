package service

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"time"

	"BetOracle/internal/chain"
	"BetOracle/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// fakeGateway 内存假账本。按外部ID存注单列表与比赛状态，调用按脚本返回
type fakeGateway struct {
	bets       map[string][]chain.OnChainBet
	states     map[string]*chain.MatchState
	betsErr    error
	responses  map[string]chain.TxResponse // key: phase:externalID
	calls      []string
	defaultTx  chain.TxResponse
	hasDefault bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		bets:      map[string][]chain.OnChainBet{},
		states:    map[string]*chain.MatchState{},
		responses: map[string]chain.TxResponse{},
	}
}

func (g *fakeGateway) script(phase, externalID string, resp chain.TxResponse) {
	g.responses[phase+":"+externalID] = resp
}

func (g *fakeGateway) respond(phase string, extID *big.Int) chain.TxResponse {
	key := phase + ":" + extID.String()
	g.calls = append(g.calls, key)
	if resp, ok := g.responses[key]; ok {
		return resp
	}
	if g.hasDefault {
		return g.defaultTx
	}
	return chain.TxResponse{Result: chain.TxSent, TxHash: "0xfake"}
}

func (g *fakeGateway) CreateMatch(_ context.Context, extID *big.Int, _, _ float64) chain.TxResponse {
	return g.respond("create", extID)
}

func (g *fakeGateway) OpenMatch(_ context.Context, extID *big.Int) chain.TxResponse {
	return g.respond("open", extID)
}

func (g *fakeGateway) CloseMatch(_ context.Context, extID *big.Int) chain.TxResponse {
	return g.respond("close", extID)
}

func (g *fakeGateway) ResolveMatch(_ context.Context, extID *big.Int, _ uint8) chain.TxResponse {
	return g.respond("resolve", extID)
}

func (g *fakeGateway) GetMatch(_ context.Context, extID *big.Int) (*chain.MatchState, error) {
	return g.states[extID.String()], nil
}

func (g *fakeGateway) GetBetsByMatch(_ context.Context, extID *big.Int) ([]chain.OnChainBet, error) {
	if g.betsErr != nil {
		return nil, g.betsErr
	}
	return g.bets[extID.String()], nil
}

// fakeBetRepo 内存注单仓储，记录写入次数供幂等断言
type fakeBetRepo struct {
	byID    map[uint64]*model.Bet
	nextID  uint64
	writes  int
	saveErr error
}

func newFakeBetRepo() *fakeBetRepo {
	return &fakeBetRepo{byID: map[uint64]*model.Bet{}, nextID: 1}
}

func (r *fakeBetRepo) add(b *model.Bet) *model.Bet {
	if b.ID == 0 {
		b.ID = r.nextID
		r.nextID++
	}
	r.byID[b.ID] = b
	return b
}

func (r *fakeBetRepo) hasDuplicate(b *model.Bet) bool {
	for _, e := range r.byID {
		if e.ID == b.ID {
			continue
		}
		if e.MatchID == b.MatchID && e.OnChainIndex == b.OnChainIndex {
			return true
		}
		if b.BlockchainTxHash != nil && e.BlockchainTxHash != nil && *e.BlockchainTxHash == *b.BlockchainTxHash {
			return true
		}
	}
	return false
}

func (r *fakeBetRepo) Create(_ context.Context, bet *model.Bet) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.hasDuplicate(bet) {
		return gorm.ErrDuplicatedKey
	}
	r.add(bet)
	r.writes++
	return nil
}

func (r *fakeBetRepo) Save(_ context.Context, bet *model.Bet) error {
	r.add(bet)
	r.writes++
	return nil
}

func (r *fakeBetRepo) SaveAll(_ context.Context, bets []*model.Bet) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, b := range bets {
		r.add(b)
		r.writes++
	}
	return nil
}

func (r *fakeBetRepo) GetByMatchAndIndex(_ context.Context, matchID uint64, index int) (*model.Bet, error) {
	for _, b := range r.byID {
		if b.MatchID == matchID && b.OnChainIndex == index {
			return b, nil
		}
	}
	return nil, nil
}

func (r *fakeBetRepo) ListByMatch(_ context.Context, matchID uint64) ([]*model.Bet, error) {
	var out []*model.Bet
	for _, b := range r.byID {
		if b.MatchID == matchID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OnChainIndex < out[j].OnChainIndex })
	return out, nil
}

func (r *fakeBetRepo) ListByWallet(_ context.Context, wallet string, _, _ int) ([]*model.Bet, int64, error) {
	var out []*model.Bet
	for _, b := range r.byID {
		if b.UserWallet == wallet {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBetRepo) ExistsByTxHash(_ context.Context, txHash string) (bool, error) {
	for _, b := range r.byID {
		if b.BlockchainTxHash != nil && *b.BlockchainTxHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBetRepo) UsedIndexes(_ context.Context, matchID uint64, candidates []int) ([]int, error) {
	set := map[int]struct{}{}
	for _, c := range candidates {
		set[c] = struct{}{}
	}
	var used []int
	for _, b := range r.byID {
		if b.MatchID != matchID {
			continue
		}
		if _, ok := set[b.OnChainIndex]; ok {
			used = append(used, b.OnChainIndex)
		}
	}
	return used, nil
}

func (r *fakeBetRepo) ListClaimable(_ context.Context, matchID uint64, wallet string) ([]*model.Bet, error) {
	var out []*model.Bet
	for _, b := range r.byID {
		if b.MatchID == matchID && b.UserWallet == wallet &&
			(b.Status == model.BetWin || b.Status == model.BetRefunded) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBetRepo) AnyClaimed(_ context.Context, matchID uint64, wallet string) (bool, error) {
	for _, b := range r.byID {
		if b.MatchID == matchID && b.UserWallet == wallet && b.Status == model.BetClaimed {
			return true, nil
		}
	}
	return false, nil
}

// fakeMatchRepo 内存比赛仓储
type fakeMatchRepo struct {
	byID   map[uint64]*model.Match
	nextID uint64
	writes int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{byID: map[uint64]*model.Match{}, nextID: 1}
}

func (r *fakeMatchRepo) add(m *model.Match) *model.Match {
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.byID[m.ID] = m
	return m
}

func (r *fakeMatchRepo) Create(_ context.Context, m *model.Match) error {
	r.add(m)
	r.writes++
	return nil
}

func (r *fakeMatchRepo) SaveAll(_ context.Context, matches []*model.Match) error {
	for _, m := range matches {
		r.add(m)
		r.writes++
	}
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id uint64) (*model.Match, error) {
	return r.byID[id], nil
}

func (r *fakeMatchRepo) GetByExternalID(_ context.Context, externalID string) (*model.Match, error) {
	for _, m := range r.byID {
		if m.ExternalID == externalID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMatchRepo) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	m, _ := r.GetByExternalID(ctx, externalID)
	return m != nil, nil
}

func (r *fakeMatchRepo) HasMatchesOnDate(_ context.Context, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	for _, m := range r.byID {
		if !m.StartTime.Before(start) && m.StartTime.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) ListByStatus(_ context.Context, status model.PipelineStatus) ([]*model.Match, error) {
	return r.filter(func(m *model.Match) bool { return m.Status == status }), nil
}

func (r *fakeMatchRepo) ListOpenable(_ context.Context, now time.Time, lead time.Duration) ([]*model.Match, error) {
	return r.filter(func(m *model.Match) bool {
		return m.Status == model.StatusOnChain && m.StartTime.After(now.Add(lead))
	}), nil
}

func (r *fakeMatchRepo) ListClosable(_ context.Context, now time.Time) ([]*model.Match, error) {
	return r.filter(func(m *model.Match) bool {
		return m.Status == model.StatusOpen && !m.StartTime.After(now)
	}), nil
}

func (r *fakeMatchRepo) ListResolvable(_ context.Context, now time.Time, delay time.Duration) ([]*model.Match, error) {
	return r.filter(func(m *model.Match) bool {
		return m.Status == model.StatusClosed && !m.StartTime.After(now.Add(-delay))
	}), nil
}

func (r *fakeMatchRepo) List(_ context.Context, status *model.PipelineStatus, _, _ int) ([]*model.Match, int64, error) {
	out := r.filter(func(m *model.Match) bool { return status == nil || m.Status == *status })
	return out, int64(len(out)), nil
}

func (r *fakeMatchRepo) filter(keep func(*model.Match) bool) []*model.Match {
	var out []*model.Match
	for _, m := range r.byID {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeEloRepo 内存Elo快照仓储
type fakeEloRepo struct {
	snapshots []*model.EloSnapshot
}

func (r *fakeEloRepo) SaveSnapshots(_ context.Context, snapshots []*model.EloSnapshot) error {
	r.snapshots = append(r.snapshots, snapshots...)
	return nil
}

func (r *fakeEloRepo) LatestElo(_ context.Context, club string, before time.Time) (*float64, error) {
	var best *model.EloSnapshot
	for _, s := range r.snapshots {
		if s.Club != club || s.Date.After(before) {
			continue
		}
		if best == nil || s.Date.After(best.Date) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	return &best.Elo, nil
}

// fakeChainLog 只计数的审计仓储
type fakeChainLog struct {
	entries []*model.ChainCallLog
}

func (r *fakeChainLog) Create(_ context.Context, entry *model.ChainCallLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

// fakeVerifier 按哈希返回预置的解码结果
type fakeVerifier struct {
	placements map[string]*chain.VerifiedPlacement
	claims     map[string]*chain.VerifiedClaim
	err        error
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		placements: map[string]*chain.VerifiedPlacement{},
		claims:     map[string]*chain.VerifiedClaim{},
	}
}

func (v *fakeVerifier) VerifyPlaceBet(_ context.Context, txHash string) (*chain.VerifiedPlacement, error) {
	if v.err != nil {
		return nil, v.err
	}
	p, ok := v.placements[strings.ToLower(txHash)]
	if !ok {
		return nil, context.Canceled
	}
	return p, nil
}

func (v *fakeVerifier) VerifyClaim(_ context.Context, txHash string) (*chain.VerifiedClaim, error) {
	if v.err != nil {
		return nil, v.err
	}
	c, ok := v.claims[strings.ToLower(txHash)]
	if !ok {
		return nil, context.Canceled
	}
	return c, nil
}

// fakeMatchData 预置赛程与完场结果
type fakeMatchData struct {
	upcoming []UpcomingMatch
	results  map[string]*MatchResult
	err      error
}

func newFakeMatchData() *fakeMatchData {
	return &fakeMatchData{results: map[string]*MatchResult{}}
}

func (f *fakeMatchData) UpcomingMatches(_ context.Context, _ time.Time) ([]UpcomingMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.upcoming, nil
}

func (f *fakeMatchData) Result(_ context.Context, externalID string) (*MatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[externalID], nil
}

// fakePredictor 固定赔率输出
type fakePredictor struct {
	prediction OddsPrediction
	err        error
	calls      int
}

func (f *fakePredictor) Predict(_ context.Context, _ OddsFeatures) (*OddsPrediction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := f.prediction
	return &p, nil
}

// fakeEloProvider 固定评分列表
type fakeEloProvider struct {
	ratings []EloRating
	err     error
}

func (f *fakeEloProvider) Ratings(_ context.Context, _ time.Time) ([]EloRating, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ratings, nil
}
