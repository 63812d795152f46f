package bank

import (
	"errors"
	"fmt"

	"crowdfund-sol/internal/types"
)

// 交易级错误（与具体指令无关）
var (
	ErrSignatureFailure         = errors.New("transaction signature verification failure")
	ErrMissingSignatures        = errors.New("transaction signature count mismatch")
	ErrBlockhashNotFound        = errors.New("blockhash not found")
	ErrAlreadyProcessed         = errors.New("this transaction has already been processed")
	ErrAccountNotFound          = errors.New("attempt to debit an account but found no record of a prior credit")
	ErrInsufficientFundsForFee  = errors.New("insufficient funds for fee")
	ErrInvalidAccountIndex      = errors.New("transaction contains an invalid account reference")
	ErrInvalidProgramForExecute = errors.New("program is not registered")
)

// 宿主在每条指令执行后校验的规则
var (
	ErrReadonlyDataModified      = errors.New("instruction modified data of a read-only account")
	ErrReadonlyLamportChange     = errors.New("instruction changed the balance of a read-only account")
	ErrExternalLamportSpend      = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalDataModified      = errors.New("instruction modified data of an account it does not own")
	ErrAccountDataSizeChanged    = errors.New("program other than the account's owner changed the size of the account data")
	ErrModifiedProgramID         = errors.New("instruction illegally modified the program id of an account")
	ErrUnbalancedInstruction     = errors.New("sum of account balances before and after instruction do not match")
	ErrDuplicateAccountOutOfSync = errors.New("duplicate account out of sync")
)

// TransactionError 记录失败的指令位置，Index 为 -1 表示交易级错误
type TransactionError struct {
	Index int
	Err   error
}

func (e *TransactionError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("Error processing Instruction %d: %v", e.Index, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Result 一笔交易的处理结果。Err 非空时除手续费外不产生任何状态变化。
type Result struct {
	Signature string
	Slot      uint64
	Err       error
	Logs      []string
	Fee       uint64
	Deltas    []AccountDelta
}

// Succeeded 交易是否执行成功
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Delta 查找指定账户的变化
func (r *Result) Delta(key types.Pubkey) (AccountDelta, bool) {
	for _, d := range r.Deltas {
		if d.Key == key {
			return d, true
		}
	}
	return AccountDelta{}, false
}
