package program

import (
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"
)

// processCreateCampaign 初始化众筹记录。
//
// 账户布局：
//
//	#0 - storage 账户（程序所有，可写，存放记录）
//	#1 - creator 账户（签名者，必须等于记录中的 admin）
func processCreateCampaign(ictx *types.InvokeContext, accounts []*types.AccountInfo, ix CreateCampaign) error {
	accs, err := takeAccounts(accounts, 2)
	if err != nil {
		return err
	}
	storage, creator := accs[0], accs[1]

	// 1. 创建者必须签名
	if !HasSigned(creator) {
		ictx.Msgf("creator account should be the signer")
		return fail(ErrUnauthorized, "creator %s did not sign", creator.Key)
	}

	// 2. 只能写入本程序所有的账户
	if !IsOwnedBy(storage, ictx.ProgramID) {
		ictx.Msgf("writing account isn't owned by program")
		return fail(ErrOwnershipMismatch, "storage %s owned by %s", storage.Key, storage.Owner)
	}

	// 3. 指令参数解码
	if ix.Err != nil {
		ictx.Msgf("instruction data deserialization failed")
		return ix.Err
	}
	campaign := ix.Campaign

	// 4. 只能创建自己管理的众筹
	if campaign.Admin != creator.Key {
		ictx.Msgf("invalid instruction data")
		return fail(ErrInvalidInstruction, "admin %s != creator %s", campaign.Admin, creator.Key)
	}

	// 5. storage 余额必须满足免租
	minimum := ictx.Rent.MinimumBalance(storage.DataLen())
	if !HasBalanceAtLeast(storage, minimum) {
		ictx.Msgf("the balance of writing account should be more than rent exemption")
		return fail(ErrInsufficientFunds, "storage balance %d < rent exemption %d", storage.Lamports, minimum)
	}

	if !AreDistinct(storage, creator) {
		return fail(ErrDuplicateAccount, "storage and creator are the same account %s", storage.Key)
	}

	// 初始捐款额强制为 0
	campaign.AmountDonated = 0
	if err := state.WriteCampaign(storage.Data, &campaign); err != nil {
		ictx.Msgf("campaign serialization failed")
		return fail(ErrMalformedInput, "write campaign: %v", err)
	}
	return nil
}
