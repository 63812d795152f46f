package program

import (
	"math"
	"testing"

	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func donateData() []byte {
	return []byte{byte(OpDonate)}
}

func TestDonate_Conservation(t *testing.T) {
	c := testCampaign()
	c.AmountDonated = 300
	for _, value := range []uint64{0, 1, 2_500_000} {
		storage := newActiveStorage(t, c, 300)
		funding := newFunding(value)
		donor := newSigner(donorKey, 1_000)
		oldStorage := storage.Lamports

		err := Process(newTestContext(), []*types.AccountInfo{storage, funding, donor}, donateData())
		require.NoError(t, err)

		assert.Equal(t, oldStorage+value, storage.Lamports, "storage 余额应增加捐款额")
		assert.Zero(t, funding.Lamports, "资金账户余额应清零")
		assert.Equal(t, uint64(1_000), donor.Lamports, "捐款人账户余额不变")

		got, err := state.DecodeCampaignPrefix(storage.Data)
		require.NoError(t, err)
		assert.Equal(t, 300+value, got.AmountDonated, "amount_donated 应累加捐款额")
		assert.Equal(t, c.Name, got.Name)
	}
}

func TestDonate_Accumulates(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	for i := 1; i <= 3; i++ {
		err := Process(newTestContext(), []*types.AccountInfo{storage, newFunding(100), newSigner(donorKey, 0)}, donateData())
		require.NoError(t, err)
	}
	got, err := state.DecodeCampaignPrefix(storage.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got.AmountDonated)
}

func TestDonate_PayloadIgnored(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	err := Process(newTestContext(), []*types.AccountInfo{storage, newFunding(5), newSigner(donorKey, 0)},
		[]byte{byte(OpDonate), 0xDE, 0xAD})
	assert.NoError(t, err)
}

func TestDonate_StorageOwnership(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	storage.Owner = otherProgram
	funding := newFunding(50)
	before := snapshotOf(storage, funding)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeOwnershipMismatch)
	requireUnchanged(t, before, storage, funding)
}

func TestDonate_FundingOwnership(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	funding := newFunding(50)
	funding.Owner = types.Pubkey{} // 普通钱包账户
	before := snapshotOf(storage, funding)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeOwnershipMismatch)
	requireUnchanged(t, before, storage, funding)
}

func TestDonate_DonorMustSign(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	funding := newFunding(50)
	donor := newSigner(donorKey, 0)
	donor.IsSigner = false
	before := snapshotOf(storage, funding)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, donor}, donateData())
	requireCode(t, err, CodeUnauthorized)
	requireUnchanged(t, before, storage, funding)
}

func TestDonate_UninitializedStorage(t *testing.T) {
	storage := &types.AccountInfo{Key: storageKey, Owner: testProgramID, Lamports: 1_000_000}
	funding := newFunding(50)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeMalformedInput)
	assert.Equal(t, uint64(50), funding.Lamports)
}

func TestDonate_ZeroFilledStorage(t *testing.T) {
	storage := newStorage(testCampaign(), 0)
	funding := newFunding(50)
	before := snapshotOf(storage, funding)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeMalformedInput)
	requireUnchanged(t, before, storage, funding)
}

func TestDonate_Overflow(t *testing.T) {
	c := testCampaign()
	c.AmountDonated = math.MaxUint64 - 1
	storage := newActiveStorage(t, c, 0)
	funding := newFunding(2)
	before := snapshotOf(storage, funding)

	err := Process(newTestContext(), []*types.AccountInfo{storage, funding, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeArithmeticOverflow)
	requireUnchanged(t, before, storage, funding)
}

func TestDonate_AliasedFunding(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	before := snapshotOf(storage)

	err := Process(newTestContext(), []*types.AccountInfo{storage, storage, newSigner(donorKey, 0)}, donateData())
	requireCode(t, err, CodeDuplicateAccount)
	requireUnchanged(t, before, storage)
}

func TestDonate_NotEnoughAccounts(t *testing.T) {
	storage := newActiveStorage(t, testCampaign(), 0)
	err := Process(newTestContext(), []*types.AccountInfo{storage, newFunding(1)}, donateData())
	requireCode(t, err, CodeNotEnoughAccountKeys)
}
