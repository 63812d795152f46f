package program

import (
	"errors"
	"fmt"
)

// ErrorCode 是返回给宿主的自定义错误码（custom program error）
type ErrorCode uint32

const (
	CodeInvalidInstruction ErrorCode = iota
	CodeOwnershipMismatch
	CodeUnauthorized
	CodeInsufficientFunds
	CodeMalformedInput
	CodeNotEnoughAccountKeys
	CodeDuplicateAccount
	CodeArithmeticOverflow
)

var codeNames = map[ErrorCode]string{
	CodeInvalidInstruction:   "InvalidInstruction",
	CodeOwnershipMismatch:    "OwnershipMismatch",
	CodeUnauthorized:         "Unauthorized",
	CodeInsufficientFunds:    "InsufficientFunds",
	CodeMalformedInput:       "MalformedInput",
	CodeNotEnoughAccountKeys: "NotEnoughAccountKeys",
	CodeDuplicateAccount:     "DuplicateAccount",
	CodeArithmeticOverflow:   "ArithmeticOverflow",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// ParseErrorCode 按名称查找错误码（模拟器场景文件使用）
func ParseErrorCode(name string) (ErrorCode, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// ProgramError 是程序返回给宿主的类型化错误
type ProgramError struct {
	Code ErrorCode
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x (%s)", uint32(e.Code), e.Code)
}

// 各错误码对应的哨兵错误，配合 errors.Is 使用
var (
	ErrInvalidInstruction   = &ProgramError{Code: CodeInvalidInstruction}
	ErrOwnershipMismatch    = &ProgramError{Code: CodeOwnershipMismatch}
	ErrUnauthorized         = &ProgramError{Code: CodeUnauthorized}
	ErrInsufficientFunds    = &ProgramError{Code: CodeInsufficientFunds}
	ErrMalformedInput       = &ProgramError{Code: CodeMalformedInput}
	ErrNotEnoughAccountKeys = &ProgramError{Code: CodeNotEnoughAccountKeys}
	ErrDuplicateAccount     = &ProgramError{Code: CodeDuplicateAccount}
	ErrArithmeticOverflow   = &ProgramError{Code: CodeArithmeticOverflow}
)

// fail 给哨兵错误附加上下文
func fail(sentinel *ProgramError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CodeOf 从错误链中取出程序错误码
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
