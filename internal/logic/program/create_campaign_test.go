package program

import (
	"testing"

	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCampaign_Success(t *testing.T) {
	c := testCampaign()
	c.AmountDonated = 999_999 // 调用方传入的值应被忽略
	storage := newStorage(c, 0)
	creator := newSigner(adminKey, 10)

	err := Process(newTestContext(), []*types.AccountInfo{storage, creator}, createData(t, c))
	require.NoError(t, err)

	got, err := state.DecodeCampaignPrefix(storage.Data)
	require.NoError(t, err)
	assert.Equal(t, adminKey, got.Admin)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Description, got.Description)
	assert.Equal(t, c.ImageLink, got.ImageLink)
	assert.Zero(t, got.AmountDonated, "创建后 amount_donated 必须为 0")
	assert.Equal(t, uint64(10), creator.Lamports, "创建不移动余额")
}

func TestCreateCampaign_ExtraAccountsIgnored(t *testing.T) {
	c := testCampaign()
	storage := newStorage(c, 0)
	extra := &types.AccountInfo{Key: types.Pubkey{0x77}}

	err := Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0), extra}, createData(t, c))
	assert.NoError(t, err)
}

func TestCreateCampaign_Unauthorized(t *testing.T) {
	c := testCampaign()
	payloads := map[string][]byte{
		"valid":     createData(t, c),
		"malformed": {byte(OpCreateCampaign), 1, 2, 3},
		"empty":     {byte(OpCreateCampaign)},
	}
	for name, data := range payloads {
		t.Run(name, func(t *testing.T) {
			storage := newStorage(c, 0)
			creator := newSigner(adminKey, 0)
			creator.IsSigner = false
			before := snapshotOf(storage, creator)

			err := Process(newTestContext(), []*types.AccountInfo{storage, creator}, data)
			requireCode(t, err, CodeUnauthorized)
			requireUnchanged(t, before, storage, creator)
		})
	}
}

func TestCreateCampaign_OwnershipMismatch(t *testing.T) {
	c := testCampaign()
	storage := newStorage(c, 0)
	storage.Owner = otherProgram
	before := snapshotOf(storage)

	err := Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c))
	requireCode(t, err, CodeOwnershipMismatch)
	requireUnchanged(t, before, storage)
}

func TestCreateCampaign_MalformedPayload(t *testing.T) {
	c := testCampaign()
	good := createData(t, c)
	cases := map[string][]byte{
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 0),
		"opcode":    {byte(OpCreateCampaign)},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			storage := newStorage(c, 0)
			before := snapshotOf(storage)
			err := Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, data)
			requireCode(t, err, CodeMalformedInput)
			requireUnchanged(t, before, storage)
		})
	}
}

func TestCreateCampaign_AdminBinding(t *testing.T) {
	c := testCampaign()
	c.Admin = strangerKey
	storage := newStorage(c, 0)
	creator := newSigner(adminKey, 0)
	before := snapshotOf(storage)

	err := Process(newTestContext(), []*types.AccountInfo{storage, creator}, createData(t, c))
	requireCode(t, err, CodeInvalidInstruction)
	requireUnchanged(t, before, storage)
}

func TestCreateCampaign_RentFloor(t *testing.T) {
	c := testCampaign()

	// 比免租线少 1
	storage := newStorage(c, 0)
	storage.Lamports--
	before := snapshotOf(storage)
	err := Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c))
	requireCode(t, err, CodeInsufficientFunds)
	requireUnchanged(t, before, storage)

	// 恰好等于免租线
	storage = newStorage(c, 0)
	err = Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c))
	assert.NoError(t, err, "余额恰好等于免租线时应创建成功")
}

func TestCreateCampaign_UndersizedBuffer(t *testing.T) {
	c := testCampaign()
	storage := newStorage(c, 0)
	storage.Data = storage.Data[:len(storage.Data)-1]
	before := snapshotOf(storage)

	err := Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c))
	requireCode(t, err, CodeMalformedInput)
	requireUnchanged(t, before, storage)
}

func TestCreateCampaign_OversizedBufferPadded(t *testing.T) {
	c := testCampaign()
	storage := newStorage(c, 0)
	storage.Data = make([]byte, state.EncodedSize(c)+32)
	for i := range storage.Data {
		storage.Data[i] = 0xEE
	}
	storage.Lamports = testRent.MinimumBalance(storage.DataLen())

	require.NoError(t, Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c)))
	for _, b := range storage.Data[state.EncodedSize(c):] {
		assert.Zero(t, b, "记录之后的旧数据应被清零")
	}
}

func TestCreateCampaign_OverwritesExisting(t *testing.T) {
	old := testCampaign()
	old.AmountDonated = 500
	storage := newActiveStorage(t, old, 0)

	c := testCampaign()
	c.Description = "seeds, soil and pots" // 比旧记录短，空间足够
	require.NoError(t, Process(newTestContext(), []*types.AccountInfo{storage, newSigner(adminKey, 0)}, createData(t, c)))

	got, err := state.DecodeCampaignPrefix(storage.Data)
	require.NoError(t, err)
	assert.Zero(t, got.AmountDonated, "重新创建会覆盖旧记录")
}

func TestCreateCampaign_NotEnoughAccounts(t *testing.T) {
	c := testCampaign()
	err := Process(newTestContext(), []*types.AccountInfo{newStorage(c, 0)}, createData(t, c))
	requireCode(t, err, CodeNotEnoughAccountKeys)
}

func TestCreateCampaign_AliasedAccounts(t *testing.T) {
	c := testCampaign()
	storage := newStorage(c, 0)
	storage.Key = adminKey
	storage.IsSigner = true
	before := snapshotOf(storage)

	// 同一个账户同时作为 storage 与 creator
	err := Process(newTestContext(), []*types.AccountInfo{storage, storage}, createData(t, c))
	requireCode(t, err, CodeDuplicateAccount)
	requireUnchanged(t, before, storage)
}
