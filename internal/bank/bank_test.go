package bank

import (
	"context"
	"testing"

	"crowdfund-sol/internal/client"
	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/logic/program"
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"

	solTypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t         *testing.T
	ctx       context.Context
	bank      *Bank
	db        *MemoryAccountsDB
	programID types.Pubkey
}

func newTestEnv(t *testing.T) *testEnv {
	db := NewMemoryAccountsDB()
	b := NewBank(db, Options{})
	programID := client.PubkeyOf(solTypes.NewAccount())
	b.RegisterProgram(programID, program.Process)
	return &testEnv{t: t, ctx: context.Background(), bank: b, db: db, programID: programID}
}

func (e *testEnv) wallet(lamports uint64) solTypes.Account {
	acc := solTypes.NewAccount()
	require.NoError(e.t, e.bank.Airdrop(e.ctx, client.PubkeyOf(acc), lamports))
	return acc
}

func (e *testEnv) send(feePayer solTypes.Account, signers []solTypes.Account, ixs ...solTypes.Instruction) *Result {
	tx, err := client.BuildTransaction(feePayer, signers, e.bank.LatestBlockhash(), ixs...)
	require.NoError(e.t, err)
	res, err := e.bank.ProcessTransaction(e.ctx, tx)
	require.NoError(e.t, err)
	return res
}

func (e *testEnv) lamports(key types.Pubkey) uint64 {
	acc, err := e.bank.GetAccount(e.ctx, key)
	require.NoError(e.t, err)
	if acc == nil {
		return 0
	}
	return acc.Lamports
}

func (e *testEnv) campaign(key types.Pubkey) *state.Campaign {
	acc, err := e.bank.GetAccount(e.ctx, key)
	require.NoError(e.t, err)
	require.NotNil(e.t, acc, "storage 账户应存在")
	c, err := state.DecodeCampaignPrefix(acc.Data)
	require.NoError(e.t, err)
	return c
}

func testCampaign(admin types.Pubkey) state.Campaign {
	return state.Campaign{
		Admin:       admin,
		Name:        "library roof",
		Description: "fix the leak before winter",
		ImageLink:   "https://example.org/roof.png",
	}
}

// createCampaign 创建 storage 账户并初始化记录
func (e *testEnv) createCampaign(admin solTypes.Account) types.Pubkey {
	storage := solTypes.NewAccount()
	c := testCampaign(client.PubkeyOf(admin))
	createIx := client.NewCreateStorageAccountInstruction(client.CreateStorageAccountParam{
		Payer:     client.PubkeyOf(admin),
		Storage:   client.PubkeyOf(storage),
		ProgramID: e.programID,
		Campaign:  &c,
		Rent:      e.bank.Rent(),
	})
	initIx, err := client.NewCreateCampaignInstruction(client.CreateCampaignParam{
		ProgramID: e.programID,
		Storage:   client.PubkeyOf(storage),
		Creator:   client.PubkeyOf(admin),
		Campaign:  c,
	})
	require.NoError(e.t, err)

	res := e.send(admin, []solTypes.Account{storage}, createIx, initIx)
	require.NoError(e.t, res.Err, "创建众筹应成功: %v", res.Logs)
	return client.PubkeyOf(storage)
}

func (e *testEnv) donate(donor solTypes.Account, storage types.Pubkey, amount uint64) *Result {
	funding := solTypes.NewAccount()
	ixs, err := client.NewDonateInstructions(client.DonateParam{
		ProgramID: e.programID,
		Storage:   storage,
		Funding:   client.PubkeyOf(funding),
		Donor:     client.PubkeyOf(donor),
		Amount:    amount,
	})
	require.NoError(e.t, err)
	return e.send(donor, []solTypes.Account{funding}, ixs...)
}

func (e *testEnv) withdraw(admin solTypes.Account, storage types.Pubkey, amount uint64) *Result {
	ix, err := client.NewWithdrawInstruction(client.WithdrawParam{
		ProgramID: e.programID,
		Storage:   storage,
		Admin:     client.PubkeyOf(admin),
		Amount:    amount,
	})
	require.NoError(e.t, err)
	return e.send(admin, nil, ix)
}

func TestBank_CreateCampaign(t *testing.T) {
	e := newTestEnv(t)
	admin := e.wallet(10 * consts.LamportsPerSOL)

	storage := e.createCampaign(admin)

	acc, err := e.bank.GetAccount(e.ctx, storage)
	require.NoError(t, err)
	assert.Equal(t, e.programID, acc.Owner, "storage 应归属众筹程序")
	c := e.campaign(storage)
	assert.Equal(t, client.PubkeyOf(admin), c.Admin)
	assert.Zero(t, c.AmountDonated)

	expected := 10*consts.LamportsPerSOL - 2*e.bank.LamportsPerSignature() - e.bank.Rent().MinimumBalance(uint64(len(acc.Data)))
	assert.Equal(t, expected, e.lamports(client.PubkeyOf(admin)), "管理员支付手续费和免租押金")
}

func TestBank_DonateAndWithdraw(t *testing.T) {
	e := newTestEnv(t)
	admin := e.wallet(10 * consts.LamportsPerSOL)
	donor := e.wallet(10 * consts.LamportsPerSOL)
	storage := e.createCampaign(admin)
	base := e.lamports(storage)

	res := e.donate(donor, storage, 3*consts.LamportsPerSOL)
	require.NoError(t, res.Err, "捐款应成功: %v", res.Logs)
	assert.Equal(t, base+3*consts.LamportsPerSOL, e.lamports(storage))
	assert.Equal(t, 3*consts.LamportsPerSOL, e.campaign(storage).AmountDonated)
	assert.Equal(t, 3, e.db.Len(), "资金账户被清空后应被回收")

	adminBefore := e.lamports(client.PubkeyOf(admin))
	res = e.withdraw(admin, storage, 3*consts.LamportsPerSOL)
	require.NoError(t, res.Err, "取出全部可用余额应成功: %v", res.Logs)
	assert.Equal(t, base, e.lamports(storage), "取款后 storage 恰好保留免租线")
	assert.Equal(t, adminBefore+3*consts.LamportsPerSOL-res.Fee, e.lamports(client.PubkeyOf(admin)))
	assert.Equal(t, 3*consts.LamportsPerSOL, e.campaign(storage).AmountDonated, "取款不修改累计捐款")
}

func TestBank_FailedTransactionKeepsOnlyFee(t *testing.T) {
	e := newTestEnv(t)
	admin := e.wallet(10 * consts.LamportsPerSOL)
	storage := e.createCampaign(admin)
	storageBefore := e.lamports(storage)
	adminBefore := e.lamports(client.PubkeyOf(admin))

	res := e.withdraw(admin, storage, 1)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, program.ErrInsufficientFunds)

	var txErr *TransactionError
	require.ErrorAs(t, res.Err, &txErr)
	assert.Equal(t, 0, txErr.Index)

	assert.Equal(t, storageBefore, e.lamports(storage), "失败交易不改变 storage")
	assert.Equal(t, adminBefore-res.Fee, e.lamports(client.PubkeyOf(admin)), "失败交易仍收取手续费")
	require.Len(t, res.Deltas, 1)
	assert.Equal(t, client.PubkeyOf(admin), res.Deltas[0].Key)
}

func TestBank_NonAdminWithdrawRejected(t *testing.T) {
	e := newTestEnv(t)
	admin := e.wallet(10 * consts.LamportsPerSOL)
	stranger := e.wallet(10 * consts.LamportsPerSOL)
	storage := e.createCampaign(admin)
	require.NoError(t, e.donate(stranger, storage, consts.LamportsPerSOL).Err)

	res := e.withdraw(stranger, storage, 1)
	assert.ErrorIs(t, res.Err, program.ErrUnauthorized)
	assert.Contains(t, res.Err.Error(), "custom program error: 0x2")
}

func TestBank_MissingSignerRejected(t *testing.T) {
	e := newTestEnv(t)
	admin := e.wallet(10 * consts.LamportsPerSOL)
	storage := solTypes.NewAccount()

	// storage 需要签名，但交易只带了 admin 的签名
	c := testCampaign(client.PubkeyOf(admin))
	ix := client.NewCreateStorageAccountInstruction(client.CreateStorageAccountParam{
		Payer:     client.PubkeyOf(admin),
		Storage:   client.PubkeyOf(storage),
		ProgramID: e.programID,
		Campaign:  &c,
		Rent:      e.bank.Rent(),
	})
	before := e.lamports(client.PubkeyOf(admin))
	res := e.send(admin, nil, ix)
	assert.ErrorIs(t, res.Err, ErrSignatureFailure)
	assert.Equal(t, before, e.lamports(client.PubkeyOf(admin)))
	assert.Zero(t, e.lamports(client.PubkeyOf(storage)))
}

func TestBank_SignatureAndBlockhashChecks(t *testing.T) {
	e := newTestEnv(t)
	payer := e.wallet(consts.LamportsPerSOL)
	to := client.PubkeyOf(solTypes.NewAccount())
	ix := client.NewTransferInstruction(client.PubkeyOf(payer), to, 1000)

	t.Run("篡改签名", func(t *testing.T) {
		tx, err := client.BuildTransaction(payer, nil, e.bank.LatestBlockhash(), ix)
		require.NoError(t, err)
		tx.Signatures[0][0] ^= 0xFF
		res, err := e.bank.ProcessTransaction(e.ctx, tx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, ErrSignatureFailure)
		assert.Zero(t, res.Fee, "签名无效不收手续费")
	})

	t.Run("未知 blockhash", func(t *testing.T) {
		tx, err := client.BuildTransaction(payer, nil, types.Hash{0x42}.String(), ix)
		require.NoError(t, err)
		res, err := e.bank.ProcessTransaction(e.ctx, tx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, ErrBlockhashNotFound)
	})

	t.Run("重放", func(t *testing.T) {
		tx, err := client.BuildTransaction(payer, nil, e.bank.LatestBlockhash(), ix)
		require.NoError(t, err)
		res, err := e.bank.ProcessTransaction(e.ctx, tx)
		require.NoError(t, err)
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(1000), e.lamports(to))

		res, err = e.bank.ProcessTransaction(e.ctx, tx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, ErrAlreadyProcessed)
		assert.Equal(t, uint64(1000), e.lamports(to), "重放不得重复入账")
	})

	t.Run("付款账户不存在", func(t *testing.T) {
		ghost := solTypes.NewAccount()
		tx, err := client.BuildTransaction(ghost, nil, e.bank.LatestBlockhash(),
			client.NewTransferInstruction(client.PubkeyOf(ghost), to, 1))
		require.NoError(t, err)
		res, err := e.bank.ProcessTransaction(e.ctx, tx)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, ErrAccountNotFound)
	})
}

// rogueInstruction 构造一个调用测试程序的指令，accounts 全部可写
func rogueInstruction(programID types.Pubkey, keys ...types.Pubkey) solTypes.Instruction {
	metas := make([]solTypes.AccountMeta, 0, len(keys))
	for _, k := range keys {
		metas = append(metas, solTypes.AccountMeta{PubKey: toSDK(k), IsWritable: true})
	}
	return solTypes.Instruction{ProgramID: toSDK(programID), Accounts: metas, Data: []byte{0}}
}

func TestBank_HostRules(t *testing.T) {
	e := newTestEnv(t)
	payer := e.wallet(consts.LamportsPerSOL)
	victim := e.wallet(consts.LamportsPerSOL)
	rogue := client.PubkeyOf(solTypes.NewAccount())

	cases := []struct {
		name    string
		process ProcessFunc
		wantErr error
	}{
		{
			name: "扣减不属于自己的账户",
			process: func(_ *types.InvokeContext, accounts []*types.AccountInfo, _ []byte) error {
				accounts[0].Lamports -= 10
				accounts[1].Lamports += 10
				return nil
			},
			wantErr: ErrExternalLamportSpend,
		},
		{
			name: "凭空增发",
			process: func(_ *types.InvokeContext, accounts []*types.AccountInfo, _ []byte) error {
				accounts[1].Lamports += 10
				return nil
			},
			wantErr: ErrUnbalancedInstruction,
		},
		{
			name: "修改不属于自己的账户所有者",
			process: func(ictx *types.InvokeContext, accounts []*types.AccountInfo, _ []byte) error {
				accounts[0].Owner = ictx.ProgramID
				return nil
			},
			wantErr: ErrModifiedProgramID,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.bank.RegisterProgram(rogue, tc.process)
			before := e.lamports(client.PubkeyOf(victim))

			res := e.send(payer, nil, rogueInstruction(rogue, client.PubkeyOf(victim), client.PubkeyOf(payer)))
			assert.ErrorIs(t, res.Err, tc.wantErr)
			assert.Equal(t, before, e.lamports(client.PubkeyOf(victim)), "违规指令的修改必须全部丢弃")
		})
	}
}

func TestBank_UnknownProgram(t *testing.T) {
	e := newTestEnv(t)
	payer := e.wallet(consts.LamportsPerSOL)
	res := e.send(payer, nil, rogueInstruction(client.PubkeyOf(solTypes.NewAccount()), client.PubkeyOf(payer)))
	assert.ErrorIs(t, res.Err, ErrInvalidProgramForExecute)
}

func TestBank_CommitHook(t *testing.T) {
	e := newTestEnv(t)
	var committed []*Result
	e.bank.OnCommit(func(_ context.Context, res *Result) {
		committed = append(committed, res)
	})

	admin := e.wallet(10 * consts.LamportsPerSOL)
	storage := e.createCampaign(admin)
	require.Len(t, committed, 1)
	d, ok := committed[0].Delta(storage)
	require.True(t, ok, "提交回调应包含 storage 的变化")
	assert.Nil(t, d.Pre, "storage 创建前不存在")
	assert.NotNil(t, d.Post)

	res := e.withdraw(admin, storage, 1)
	require.Error(t, res.Err)
	assert.Len(t, committed, 1, "失败交易不触发提交回调")
}
