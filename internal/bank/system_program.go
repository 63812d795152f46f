package bank

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/types"
)

// 系统程序指令编号（u32 小端），与 solana-go-sdk program/system 的编码一致
const (
	systemCreateAccount uint32 = 0
	systemAssign        uint32 = 1
	systemTransfer      uint32 = 2
)

var (
	ErrSystemInvalidInstructionData = errors.New("invalid instruction data")
	ErrSystemNotEnoughAccountKeys   = errors.New("not enough account keys")
	ErrSystemMissingSignature       = errors.New("missing required signature")
	ErrSystemAccountAlreadyInUse    = errors.New("account already in use")
	ErrSystemInsufficientFunds      = errors.New("insufficient funds")
	ErrSystemInvalidAccountOwner    = errors.New("invalid account owner")
	ErrSystemAccountDataTooLarge    = errors.New("account data too large")
	ErrSystemFromMustNotCarryData   = errors.New("from account must not carry data")
)

// ProcessSystem 本地 bank 内置的系统程序，只实现 CreateAccount / Assign / Transfer
func ProcessSystem(ictx *types.InvokeContext, accounts []*types.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return ErrSystemInvalidInstructionData
	}

	args := data[4:]
	switch binary.LittleEndian.Uint32(data[:4]) {
	case systemCreateAccount:
		return systemCreate(ictx, accounts, args)
	case systemAssign:
		return systemAssignOwner(ictx, accounts, args)
	case systemTransfer:
		return systemTransferLamports(ictx, accounts, args)
	default:
		return fmt.Errorf("%w: unsupported system instruction %d", ErrSystemInvalidInstructionData, binary.LittleEndian.Uint32(data[:4]))
	}
}

// CreateAccount: lamports u64 | space u64 | owner [32]
func systemCreate(ictx *types.InvokeContext, accounts []*types.AccountInfo, args []byte) error {
	if len(args) != 8+8+32 {
		return ErrSystemInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(args[0:8])
	space := binary.LittleEndian.Uint64(args[8:16])
	var owner types.Pubkey
	copy(owner[:], args[16:48])

	if space > consts.MaxAccountDataSize {
		return ErrSystemAccountDataTooLarge
	}
	if len(accounts) < 2 {
		return ErrSystemNotEnoughAccountKeys
	}
	from, to := accounts[0], accounts[1]
	if !from.IsSigner || !to.IsSigner {
		return ErrSystemMissingSignature
	}
	if to.Lamports > 0 || len(to.Data) > 0 || to.Owner != consts.SystemProgram {
		ictx.Msgf("Create Account: account %s already in use", to.Key)
		return ErrSystemAccountAlreadyInUse
	}
	if err := debit(ictx, from, lamports); err != nil {
		return err
	}

	to.Data = make([]byte, space)
	to.Owner = owner
	to.Lamports = lamports
	return nil
}

// Assign: owner [32]
func systemAssignOwner(ictx *types.InvokeContext, accounts []*types.AccountInfo, args []byte) error {
	if len(args) != 32 {
		return ErrSystemInvalidInstructionData
	}
	if len(accounts) < 1 {
		return ErrSystemNotEnoughAccountKeys
	}
	acc := accounts[0]
	if !acc.IsSigner {
		return ErrSystemMissingSignature
	}
	if acc.Owner != consts.SystemProgram {
		return ErrSystemInvalidAccountOwner
	}
	copy(acc.Owner[:], args)
	return nil
}

// Transfer: lamports u64
func systemTransferLamports(ictx *types.InvokeContext, accounts []*types.AccountInfo, args []byte) error {
	if len(args) != 8 {
		return ErrSystemInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(args)
	if len(accounts) < 2 {
		return ErrSystemNotEnoughAccountKeys
	}
	from, to := accounts[0], accounts[1]
	if !from.IsSigner {
		return ErrSystemMissingSignature
	}
	if len(from.Data) > 0 {
		ictx.Msgf("Transfer: `from` must not carry data")
		return ErrSystemFromMustNotCarryData
	}
	sum, carry := bits.Add64(to.Lamports, amount, 0)
	if carry != 0 && from != to {
		return fmt.Errorf("%w: lamport overflow", ErrSystemInvalidInstructionData)
	}
	if err := debit(ictx, from, amount); err != nil {
		return err
	}
	if from == to {
		to.Lamports += amount
		return nil
	}
	to.Lamports = sum
	return nil
}

func debit(ictx *types.InvokeContext, from *types.AccountInfo, amount uint64) error {
	if from.Owner != consts.SystemProgram {
		return ErrSystemInvalidAccountOwner
	}
	if from.Lamports < amount {
		ictx.Msgf("Transfer: insufficient lamports %d, need %d", from.Lamports, amount)
		return ErrSystemInsufficientFunds
	}
	from.Lamports -= amount
	return nil
}
