package bank

import (
	"bytes"

	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/types"
)

// Account 是 bank 持久化的账户状态
type Account struct {
	Lamports   uint64
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	Data       []byte
}

// emptyAccount 不存在的账户按系统程序拥有的空账户处理
func emptyAccount() *Account {
	return &Account{Owner: consts.SystemProgram}
}

// Clone 深拷贝，存储层读写都经过它，避免调用方修改内部状态
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return &c
}

// Equal 比较两个账户状态（nil 视为不存在）
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

func (a *Account) toInfo(key types.Pubkey, isSigner, isWritable bool) *types.AccountInfo {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &types.AccountInfo{
		Key:        key,
		Owner:      a.Owner,
		IsSigner:   isSigner,
		IsWritable: isWritable,
		Executable: a.Executable,
		Lamports:   a.Lamports,
		Data:       data,
	}
}

func (a *Account) applyInfo(info *types.AccountInfo) {
	a.Lamports = info.Lamports
	a.Owner = info.Owner
	a.Data = make([]byte, len(info.Data))
	copy(a.Data, info.Data)
}

// AccountDelta 交易前后账户状态变化，Post 为 nil 表示账户被回收
type AccountDelta struct {
	Key  types.Pubkey
	Pre  *Account
	Post *Account
}
