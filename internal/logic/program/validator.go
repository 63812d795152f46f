package program

import (
	"math/bits"

	"crowdfund-sol/internal/types"
)

// 账户校验谓词：纯函数，不修改任何账户。

// IsOwnedBy 账户数据是否由指定程序控制
func IsOwnedBy(acc *types.AccountInfo, programID types.Pubkey) bool {
	return acc.Owner == programID
}

// HasSigned 交易签名集合是否包含该账户
func HasSigned(acc *types.AccountInfo) bool {
	return acc.IsSigner
}

// HasBalanceAtLeast 余额是否不低于 minimum
func HasBalanceAtLeast(acc *types.AccountInfo, minimum uint64) bool {
	return acc.Lamports >= minimum
}

// Headroom 返回余额超出 minimum 的部分；余额低于 minimum 时 ok=false（不回绕）
func Headroom(balance, minimum uint64) (headroom uint64, ok bool) {
	if balance < minimum {
		return 0, false
	}
	return balance - minimum, true
}

// CheckedAdd 无符号加法，溢出时 ok=false
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// AreDistinct 判断各账户句柄是否指向不同账户
func AreDistinct(accounts ...*types.AccountInfo) bool {
	seen := make(map[types.Pubkey]struct{}, len(accounts))
	for _, acc := range accounts {
		if _, ok := seen[acc.Key]; ok {
			return false
		}
		seen[acc.Key] = struct{}{}
	}
	return true
}

// takeAccounts 按位置取出 handler 需要的前 n 个账户
func takeAccounts(accounts []*types.AccountInfo, n int) ([]*types.AccountInfo, error) {
	if len(accounts) < n {
		return nil, fail(ErrNotEnoughAccountKeys, "need %d accounts, got %d", n, len(accounts))
	}
	for i := 0; i < n; i++ {
		if accounts[i] == nil {
			return nil, fail(ErrNotEnoughAccountKeys, "account #%d missing", i)
		}
	}
	return accounts[:n], nil
}
