package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/network"
	"github.com/ipcollateral/lending-services/util/testutil"
	"github.com/stretchr/testify/require"
)

var errChainDown = errors.New("chain is down")

// newAssetStore returns a Redis-backed store on a fresh in-memory
// server.
func newAssetStore(t *testing.T) *network.RedisClient {
	server := testutil.NewRedisServer()
	client := network.NewRedisClient(server.Addr(), "", 0)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client
}

func saveAssets(t *testing.T, store *network.RedisClient, assets ...*lending.Asset) {
	require.Nil(t, store.AssetsSave(context.Background(), testutil.WalletAddress, assets))
}

func loadAssets(t *testing.T, store *network.RedisClient) []*lending.Asset {
	assets, err := store.AssetsGet(context.Background(), testutil.WalletAddress)
	require.Nil(t, err)
	return assets
}

type fakeMedia struct {
	uploads []string
	err     error
}

func (m *fakeMedia) Upload(ctx context.Context, filename, contentType string, data []byte, uploadedAt time.Time) (*network.MediaObject, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := network.MediaKey(filename, uploadedAt)
	m.uploads = append(m.uploads, key)
	return &network.MediaObject{
		Bucket:      testutil.MediaBucket,
		Key:         key,
		URL:         "http://localhost:9899/" + testutil.MediaBucket + "/" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

type fakeRegistrar struct {
	tokens []*lending.TokenRequest
	err    error
}

func (r *fakeRegistrar) Register(ctx context.Context, token *lending.TokenRequest) (*lending.StatusResponse, error) {
	r.tokens = append(r.tokens, token)
	if r.err != nil {
		return nil, r.err
	}
	resp := testutil.GetStatusResponse("pending")
	resp.ID = token.ID
	return resp, nil
}

type published struct {
	topic string
	event map[string]interface{}
}

type fakePublisher struct {
	mutex    sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, topic string, v interface{}) error {
	if p.err != nil {
		return p.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	event := make(map[string]interface{})
	if err = json.Unmarshal(data, &event); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.messages = append(p.messages, published{topic: topic, event: event})
	return nil
}

func (p *fakePublisher) Topics() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	topics := make([]string, len(p.messages))
	for i, msg := range p.messages {
		topics[i] = msg.topic
	}
	return topics
}

// fakeLedger records every call by name and answers views from maps.
type fakeLedger struct {
	mutex      sync.Mutex
	calls      []string
	err        error
	nextLoanID int64
	owed       map[int64]*big.Int
	loans      map[int64]*lending.Loan
	userLoans  []*big.Int
	collateral map[common.Address]*lending.Collateral
	failLoans  map[int64]bool
	failAssets map[common.Address]bool

	// unregistered assets are unknown to the IP asset registry.
	unregistered map[common.Address]bool
	registryErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		nextLoanID: 1,
		owed:       make(map[int64]*big.Int),
		loans:      make(map[int64]*lending.Loan),
		collateral: make(map[common.Address]*lending.Collateral),
		failLoans:  make(map[int64]bool),
		failAssets: make(map[common.Address]bool),

		unregistered: make(map[common.Address]bool),
	}
}

func (l *fakeLedger) record(call string) (*types.Receipt, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, call)
	if l.err != nil {
		return nil, l.err
	}
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.BigToHash(big.NewInt(int64(len(l.calls)))),
	}, nil
}

func (l *fakeLedger) Calls() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *fakeLedger) IsRegistered(ctx context.Context, asset common.Address) (bool, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.registryErr != nil {
		return false, l.registryErr
	}
	return !l.unregistered[asset], nil
}

func (l *fakeLedger) InitiateVerification(ctx context.Context, asset common.Address, externalID string, assessedValue *big.Int) (*types.Receipt, error) {
	return l.record(fmt.Sprintf("initiateVerification(%s,%s,%s)", asset.Hex(), externalID, assessedValue))
}

func (l *fakeLedger) RecordVerificationResult(ctx context.Context, externalID string, verified bool, riskScore *big.Int) (*types.Receipt, error) {
	return l.record(fmt.Sprintf("recordVerificationResult(%s,%t,%s)", externalID, verified, riskScore))
}

func (l *fakeLedger) HandleVerificationTimeout(ctx context.Context, externalID string) (*types.Receipt, error) {
	return l.record(fmt.Sprintf("handleVerificationTimeout(%s)", externalID))
}

func (l *fakeLedger) CreateLoan(ctx context.Context, asset common.Address, amount, duration *big.Int, loanToken common.Address, borrowerChainID *big.Int) (*big.Int, *types.Receipt, error) {
	receipt, err := l.record(fmt.Sprintf("createLoan(%s,%s,%s,%s,%s)",
		asset.Hex(), amount, duration, loanToken.Hex(), borrowerChainID))
	if err != nil {
		return nil, nil, err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	id := big.NewInt(l.nextLoanID)
	l.nextLoanID++
	return id, receipt, nil
}

func (l *fakeLedger) RepayLoan(ctx context.Context, loanID *big.Int) (*types.Receipt, error) {
	return l.record(fmt.Sprintf("repayLoan(%s)", loanID))
}

func (l *fakeLedger) ApproveLoanToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Receipt, error) {
	return l.record(fmt.Sprintf("approve(%s,%s)", token.Hex(), amount))
}

func (l *fakeLedger) CalculateTotalOwed(ctx context.Context, loanID *big.Int) (*big.Int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	owed, ok := l.owed[loanID.Int64()]
	if !ok {
		return nil, errChainDown
	}
	return owed, nil
}

func (l *fakeLedger) GetUserLoans(ctx context.Context, user common.Address) ([]*big.Int, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.userLoans, nil
}

func (l *fakeLedger) GetLoan(ctx context.Context, loanID *big.Int) (*lending.Loan, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.failLoans[loanID.Int64()] {
		return nil, errChainDown
	}
	loan, ok := l.loans[loanID.Int64()]
	if !ok {
		return nil, fmt.Errorf("no loan %s", loanID)
	}
	return loan, nil
}

func (l *fakeLedger) GetIPCollateral(ctx context.Context, asset common.Address) (*lending.Collateral, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.failAssets[asset] {
		return nil, errChainDown
	}
	collateral, ok := l.collateral[asset]
	if !ok {
		return &lending.Collateral{IPAsset: common.Address{}.Hex()}, nil
	}
	return collateral, nil
}
