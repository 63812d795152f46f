package program

import (
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"
)

// processWithdraw 管理员从 storage 账户取出余额，取款后 storage 仍需保持免租。
//
// 账户布局：
//
//	#0 - storage 账户（程序所有，可写）
//	#1 - admin 账户（签名者，可写，收款方）
func processWithdraw(ictx *types.InvokeContext, accounts []*types.AccountInfo, ix Withdraw) error {
	accs, err := takeAccounts(accounts, 2)
	if err != nil {
		return err
	}
	storage, admin := accs[0], accs[1]

	// 1. storage 必须由本程序所有
	if !IsOwnedBy(storage, ictx.ProgramID) {
		ictx.Msgf("writing account isn't owned by program")
		return fail(ErrOwnershipMismatch, "storage %s owned by %s", storage.Key, storage.Owner)
	}

	// 2. admin 必须签名
	if !HasSigned(admin) {
		ictx.Msgf("admin should be signer")
		return fail(ErrUnauthorized, "admin %s did not sign", admin.Key)
	}

	// 3. 读取记录
	campaign, err := state.DecodeCampaignPrefix(storage.Data)
	if err != nil {
		ictx.Msgf("error deserializing data")
		return fail(ErrMalformedInput, "decode campaign: %v", err)
	}

	// 4. 只有记录中的管理员可以取款
	if campaign.Admin != admin.Key {
		ictx.Msgf("only the account admin can withdraw")
		return fail(ErrUnauthorized, "signer %s is not admin %s", admin.Key, campaign.Admin)
	}

	// 5. 取款参数
	if ix.Err != nil {
		ictx.Msgf("instruction data deserialization failed")
		return ix.Err
	}
	amount := ix.Request.Amount

	// 6. 取款后余额不能低于免租线
	minimum := ictx.Rent.MinimumBalance(storage.DataLen())
	headroom, ok := Headroom(storage.Lamports, minimum)
	if !ok || amount > headroom {
		ictx.Msgf("insufficient balance")
		return fail(ErrInsufficientFunds, "requested %d, withdrawable %d (balance %d, rent exemption %d)",
			amount, headroom, storage.Lamports, minimum)
	}

	adminBalance, ok := CheckedAdd(admin.Lamports, amount)
	if !ok {
		return fail(ErrArithmeticOverflow, "admin balance %d + %d", admin.Lamports, amount)
	}
	if !AreDistinct(storage, admin) {
		return fail(ErrDuplicateAccount, "storage and admin are the same account %s", storage.Key)
	}

	// 所有校验完成后才修改余额
	storage.Lamports -= amount
	admin.Lamports = adminBalance
	return nil
}
