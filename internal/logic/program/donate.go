package program

import (
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"
)

// processDonate 把捐款资金账户的全部余额转入 storage，并累加 amount_donated。
//
// 账户布局：
//
//	#0 - storage 账户（程序所有，可写）
//	#1 - donor funding 账户（程序所有，可写，余额即捐款额）
//	#2 - donor 账户（签名者）
func processDonate(ictx *types.InvokeContext, accounts []*types.AccountInfo) error {
	accs, err := takeAccounts(accounts, 3)
	if err != nil {
		return err
	}
	storage, funding, donor := accs[0], accs[1], accs[2]

	// 1. storage 必须由本程序所有
	if !IsOwnedBy(storage, ictx.ProgramID) {
		ictx.Msgf("writing account isn't owned by program")
		return fail(ErrOwnershipMismatch, "storage %s owned by %s", storage.Key, storage.Owner)
	}

	// 2. 资金账户也必须由本程序所有，否则程序无权扣减其余额
	if !IsOwnedBy(funding, ictx.ProgramID) {
		ictx.Msgf("donator program account isn't owned by program")
		return fail(ErrOwnershipMismatch, "funding %s owned by %s", funding.Key, funding.Owner)
	}

	// 3. 捐款人必须签名
	if !HasSigned(donor) {
		ictx.Msgf("donator should be signer")
		return fail(ErrUnauthorized, "donor %s did not sign", donor.Key)
	}

	// 4. 读取记录
	campaign, err := state.DecodeCampaignPrefix(storage.Data)
	if err != nil {
		ictx.Msgf("error deserializing data")
		return fail(ErrMalformedInput, "decode campaign: %v", err)
	}

	value := funding.Lamports
	total, ok := CheckedAdd(campaign.AmountDonated, value)
	if !ok {
		return fail(ErrArithmeticOverflow, "amount_donated %d + %d", campaign.AmountDonated, value)
	}
	storageBalance, ok := CheckedAdd(storage.Lamports, value)
	if !ok {
		return fail(ErrArithmeticOverflow, "storage balance %d + %d", storage.Lamports, value)
	}
	if !AreDistinct(storage, funding, donor) {
		return fail(ErrDuplicateAccount, "storage, funding and donor must be distinct")
	}

	// 先确认记录能写回原 buffer，再移动余额
	campaign.AmountDonated = total
	if !state.FitsIn(campaign, len(storage.Data)) {
		return fail(ErrMalformedInput, "campaign needs %d bytes, account has %d", state.EncodedSize(campaign), len(storage.Data))
	}

	storage.Lamports = storageBalance
	funding.Lamports = 0
	if err := state.WriteCampaign(storage.Data, campaign); err != nil {
		// 余额已移动；宿主会因错误回滚整笔交易
		return fail(ErrMalformedInput, "write campaign: %v", err)
	}
	return nil
}
