package program

import (
	"bytes"
	"testing"

	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/sysvar"
	"crowdfund-sol/internal/types"

	"github.com/stretchr/testify/require"
)

var (
	testProgramID = types.Pubkey{0xC0, 0xFF, 0xEE}
	otherProgram  = types.Pubkey{0x11}
	adminKey      = types.Pubkey{0xA1}
	strangerKey   = types.Pubkey{0xB2}
	storageKey    = types.Pubkey{0x5E}
	fundingKey    = types.Pubkey{0xF0}
	donorKey      = types.Pubkey{0xD0}
	testRent      = sysvar.DefaultRent()
)

func newTestContext() *types.InvokeContext {
	return types.NewInvokeContext(testProgramID, testRent)
}

func testCampaign() *state.Campaign {
	return &state.Campaign{
		Admin:       adminKey,
		Name:        "community garden",
		Description: "seeds, soil and tools",
		ImageLink:   "ipfs://garden",
	}
}

// newStorage 创建大小恰好容纳 c 的空 storage 账户，余额为免租线 + extra
func newStorage(c *state.Campaign, extra uint64) *types.AccountInfo {
	size := state.EncodedSize(c)
	return &types.AccountInfo{
		Key:        storageKey,
		Owner:      testProgramID,
		IsWritable: true,
		Lamports:   testRent.MinimumBalance(uint64(size)) + extra,
		Data:       make([]byte, size),
	}
}

// newActiveStorage 创建已写入记录的 storage 账户
func newActiveStorage(t *testing.T, c *state.Campaign, extra uint64) *types.AccountInfo {
	acc := newStorage(c, extra)
	require.NoError(t, state.WriteCampaign(acc.Data, c))
	return acc
}

func newSigner(key types.Pubkey, lamports uint64) *types.AccountInfo {
	return &types.AccountInfo{Key: key, Owner: types.Pubkey{}, IsSigner: true, IsWritable: true, Lamports: lamports}
}

func newFunding(lamports uint64) *types.AccountInfo {
	return &types.AccountInfo{Key: fundingKey, Owner: testProgramID, IsWritable: true, Lamports: lamports}
}

func createData(t *testing.T, c *state.Campaign) []byte {
	data, err := EncodeInstruction(CreateCampaign{Campaign: *c})
	require.NoError(t, err)
	return data
}

func withdrawData(t *testing.T, amount uint64) []byte {
	data, err := EncodeInstruction(Withdraw{Request: state.WithdrawRequest{Amount: amount}})
	require.NoError(t, err)
	return data
}

type accountSnapshot struct {
	lamports uint64
	data     []byte
}

func snapshotOf(accs ...*types.AccountInfo) []accountSnapshot {
	out := make([]accountSnapshot, len(accs))
	for i, acc := range accs {
		out[i] = accountSnapshot{lamports: acc.Lamports, data: bytes.Clone(acc.Data)}
	}
	return out
}

func requireUnchanged(t *testing.T, before []accountSnapshot, accs ...*types.AccountInfo) {
	t.Helper()
	require.Equal(t, before, snapshotOf(accs...), "失败的指令不应修改任何账户")
}

func requireCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok, "应返回程序错误, got %v", err)
	require.Equal(t, want, code, "错误码不符: %v", err)
}
