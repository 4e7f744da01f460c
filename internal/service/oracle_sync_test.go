package service

import (
	"context"
	"testing"
	"time"

	"BetOracle/internal/chain"
	"BetOracle/internal/config"
	"BetOracle/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainStatus(s model.OnChainStatus) *model.OnChainStatus { return &s }

type syncFixture struct {
	gw      *fakeGateway
	matches *fakeMatchRepo
	bets    *fakeBetRepo
	logs    *fakeChainLog
	data    *fakeMatchData
	svc     *OracleSyncService
}

func newSyncFixture() *syncFixture {
	gw := newFakeGateway()
	matches := newFakeMatchRepo()
	bets := newFakeBetRepo()
	logs := &fakeChainLog{}
	data := newFakeMatchData()
	logger := testLogger()
	cfg := config.SyncConfig{OpenLeadMin: 10, ResolveDelayMin: 150}
	svc := NewOracleSyncService(gw, matches, bets, logs, data,
		NewReconciler(gw, bets, logger), cfg, logger)
	return &syncFixture{gw: gw, matches: matches, bets: bets, logs: logs, data: data, svc: svc}
}

func TestSyncCreatesReadyMatches(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusReadyForChain, OddsHome: 1.8, OddsAway: 2.1,
		StartTime: time.Now().UTC().Add(2 * time.Hour)})

	require.NoError(t, f.svc.Sync(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	// 阶段串行且落库即可见：开赛提前量足够时，同一轮内 create 完紧接着 open
	assert.Equal(t, model.StatusOpen, m.Status)
	require.NotEmpty(t, f.logs.entries)
	assert.Equal(t, "create", f.logs.entries[0].Phase)
	assert.Equal(t, "Sent", f.logs.entries[0].Result)
}

func TestSyncCreateAlreadyExistsAdoptsChainStatus(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusReadyForChain})
	f.gw.script("create", "100", chain.TxResponse{
		Result: chain.TxAlreadyExists,
		Status: chainStatus(model.ChainOpen),
	})

	require.NoError(t, f.svc.createOnChain(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusOpen, m.Status)
}

func TestSyncCreateFailureKeepsStatus(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusReadyForChain})
	f.gw.script("create", "100", chain.TxResponse{Result: chain.TxFailed})

	require.NoError(t, f.svc.createOnChain(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusReadyForChain, m.Status, "failed create stays for next cycle")
}

func TestSyncSkipsNonNumericExternalID(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "abc", Status: model.StatusReadyForChain})

	require.NoError(t, f.svc.createOnChain(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "abc")
	assert.Equal(t, model.StatusReadyForChain, m.Status)
	assert.Empty(t, f.gw.calls, "non-numeric id never reaches the contract")
}

func TestSyncOpensOnlyWithEnoughLead(t *testing.T) {
	f := newSyncFixture()
	now := time.Now().UTC()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusOnChain, StartTime: now.Add(2 * time.Hour)})
	f.matches.add(&model.Match{ExternalID: "200", Status: model.StatusOnChain, StartTime: now.Add(5 * time.Minute)})

	require.NoError(t, f.svc.openMatches(context.Background()))

	early, _ := f.matches.GetByExternalID(context.Background(), "100")
	late, _ := f.matches.GetByExternalID(context.Background(), "200")
	assert.Equal(t, model.StatusOpen, early.Status)
	assert.Equal(t, model.StatusOnChain, late.Status, "too close to kickoff, never opens")
}

func TestSyncBadStatusIsAuthoritativeCorrection(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusOnChain,
		StartTime: time.Now().UTC().Add(2 * time.Hour)})
	f.gw.script("open", "100", chain.TxResponse{
		Result: chain.TxBadStatus,
		Status: chainStatus(model.ChainClosed),
	})

	require.NoError(t, f.svc.openMatches(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusClosed, m.Status)
}

func TestSyncClosesStartedMatches(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusOpen,
		StartTime: time.Now().UTC().Add(-time.Minute)})

	require.NoError(t, f.svc.closeMatches(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusClosed, m.Status)
}

func TestSyncResolveSettlesBets(t *testing.T) {
	f := newSyncFixture()
	m := f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusClosed,
		StartTime: time.Now().UTC().Add(-4 * time.Hour)})
	f.bets.add(&model.Bet{BetUUID: "b-1", UserWallet: "0xaaa", MatchID: m.ID, OnChainIndex: 0,
		Pick: 1, PlayAmount: 10, Status: model.BetMatched})
	f.bets.add(&model.Bet{BetUUID: "b-2", UserWallet: "0xbbb", MatchID: m.ID, OnChainIndex: 1,
		Pick: 2, PlayAmount: 10, Status: model.BetMatched})
	f.bets.add(&model.Bet{BetUUID: "b-3", UserWallet: "0xccc", MatchID: m.ID, OnChainIndex: 2,
		Pick: 1, PlayAmount: 0, Status: model.BetRefunded})
	f.data.results["100"] = &MatchResult{ExternalID: "100", Finished: true, HomeGoals: 2, AwayGoals: 1}

	require.NoError(t, f.svc.resolveMatches(context.Background()))

	got, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusResolved, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Home", *got.Result)

	list, _ := f.bets.ListByMatch(context.Background(), m.ID)
	assert.Equal(t, model.BetWin, list[0].Status)
	assert.Equal(t, model.BetLose, list[1].Status)
	assert.Equal(t, model.BetRefunded, list[2].Status, "refunded bets are not settled")
}

func TestSyncResolveDrawRefundsOnChain(t *testing.T) {
	// 平局以 resolve(0) 上链让合约退款；链下不产生 Win/Lose，注单经对账收敛为 Refunded
	f := newSyncFixture()
	m := f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusClosed,
		StartTime: time.Now().UTC().Add(-4 * time.Hour)})
	f.bets.add(&model.Bet{BetUUID: "b-1", UserWallet: "0xaaa", MatchID: m.ID, OnChainIndex: 0,
		Pick: 1, PlayAmount: 10, Status: model.BetMatched})
	f.data.results["100"] = &MatchResult{ExternalID: "100", Finished: true, HomeGoals: 1, AwayGoals: 1}

	require.NoError(t, f.svc.resolveMatches(context.Background()))

	got, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusResolved, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Draw", *got.Result)

	list, _ := f.bets.ListByMatch(context.Background(), m.ID)
	assert.Equal(t, model.BetMatched, list[0].Status, "draw settles nothing off-chain")
}

func TestSyncDoesNotReconcileOpenMatches(t *testing.T) {
	// 开盘期间不补建链下记录：否则无哈希的补建行会占住下标，
	// 用户随后对同一笔链上注单的正常登记会被判为冲突
	f := newSyncFixture()
	m := f.matches.add(&model.Match{ExternalID: "100", OddsHome: 1.85, OddsAway: 2.10,
		Status: model.StatusOpen, StartTime: time.Now().UTC().Add(2 * time.Hour)})
	f.gw.bets["100"] = []chain.OnChainBet{
		{User: "0xaaa", Amount: 10, Side: 1, Status: uint8(model.BetPlaced), Index: 0},
	}

	require.NoError(t, f.svc.Sync(context.Background()))

	list, _ := f.bets.ListByMatch(context.Background(), m.ID)
	assert.Empty(t, list, "open matches stay untouched by reconcile")

	verifier := newFakeVerifier()
	verifier.placements["0xdead"] = &chain.VerifiedPlacement{
		MatchExternalID: "100", Pick: 1, Amount: 10, Wallet: "0xaaa",
	}
	betSvc := NewBetService(verifier, NewReconciler(f.gw, f.bets, testLogger()),
		f.matches, f.bets, testLogger())
	bet, err := betSvc.Create(context.Background(), &CreateBetRequest{
		TxHash: "0xdead", MatchExternalID: "100", Wallet: "0xaaa", Pick: 1, Amount: 10,
	})
	require.NoError(t, err, "first registration during the betting window must succeed")
	assert.Equal(t, 0, bet.OnChainIndex)
}

func TestSyncResolveWaitsForFinalResult(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusClosed,
		StartTime: time.Now().UTC().Add(-4 * time.Hour)})
	f.data.results["100"] = &MatchResult{ExternalID: "100", Finished: false}

	require.NoError(t, f.svc.resolveMatches(context.Background()))

	m, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusClosed, m.Status)
	assert.Empty(t, f.gw.calls, "no resolve call without a final result")
}

func TestSyncResolveIdempotentReplay(t *testing.T) {
	// 链上已 Resolved 但链下上次没记上：重放时按链上真值落库
	f := newSyncFixture()
	m := f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusClosed,
		StartTime: time.Now().UTC().Add(-4 * time.Hour)})
	f.bets.add(&model.Bet{BetUUID: "b-1", UserWallet: "0xaaa", MatchID: m.ID, OnChainIndex: 0,
		Pick: 2, PlayAmount: 10, Status: model.BetMatched})
	f.data.results["100"] = &MatchResult{ExternalID: "100", Finished: true, HomeGoals: 0, AwayGoals: 2}
	f.gw.script("resolve", "100", chain.TxResponse{
		Result: chain.TxBadStatus,
		Status: chainStatus(model.ChainResolved),
	})

	require.NoError(t, f.svc.resolveMatches(context.Background()))

	got, _ := f.matches.GetByExternalID(context.Background(), "100")
	assert.Equal(t, model.StatusResolved, got.Status)
	list, _ := f.bets.ListByMatch(context.Background(), m.ID)
	assert.Equal(t, model.BetWin, list[0].Status)
}

func TestResolveOneRejectsDraw(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.ResolveOne(context.Background(), "100", 0)
	assert.True(t, IsValidation(err))
}

func TestResolveOneUnknownMatch(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.ResolveOne(context.Background(), "100", 1)
	assert.True(t, IsValidation(err))
}

func TestResolveOneChainFailure(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusClosed})
	f.gw.script("resolve", "100", chain.TxResponse{Result: chain.TxFailed})

	_, err := f.svc.ResolveOne(context.Background(), "100", 1)
	assert.True(t, IsChainCall(err))
}

func TestCloseOneIgnoresTimeWindow(t *testing.T) {
	f := newSyncFixture()
	f.matches.add(&model.Match{ExternalID: "100", Status: model.StatusOpen,
		StartTime: time.Now().UTC().Add(time.Hour)})

	m, err := f.svc.CloseOne(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, m.Status)
}
