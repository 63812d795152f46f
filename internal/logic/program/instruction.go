package program

import (
	"fmt"

	"crowdfund-sol/internal/state"
)

// Opcode 是指令数据的第一个字节
type Opcode byte

const (
	OpCreateCampaign Opcode = 0
	OpWithdraw       Opcode = 1
	OpDonate         Opcode = 2
)

func (op Opcode) String() string {
	switch op {
	case OpCreateCampaign:
		return "CreateCampaign"
	case OpWithdraw:
		return "Withdraw"
	case OpDonate:
		return "Donate"
	default:
		return fmt.Sprintf("Opcode(%d)", byte(op))
	}
}

// Instruction 是解码后的指令，只有下面三种实现。
type Instruction interface {
	Opcode() Opcode
	isInstruction()
}

// CreateCampaign 创建众筹记录。参数解码失败时 Err 非空，
// 由 handler 在自己的校验顺序中（签名、owner 检查之后）返回。
type CreateCampaign struct {
	Campaign state.Campaign
	Err      error
}

// Withdraw 管理员取款
type Withdraw struct {
	Request state.WithdrawRequest
	Err     error
}

// Donate 捐款；金额取自捐款资金账户的全部余额，指令参数被忽略
type Donate struct{}

func (CreateCampaign) Opcode() Opcode { return OpCreateCampaign }
func (Withdraw) Opcode() Opcode       { return OpWithdraw }
func (Donate) Opcode() Opcode         { return OpDonate }

func (CreateCampaign) isInstruction() {}
func (Withdraw) isInstruction()       {}
func (Donate) isInstruction()         {}

// DecodeInstruction 在入口处一次性解码指令数据。
// 空数据或未知 opcode 返回 ErrInvalidInstruction。
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fail(ErrInvalidInstruction, "empty instruction data")
	}

	args := data[1:]
	switch Opcode(data[0]) {
	case OpCreateCampaign:
		ix := CreateCampaign{}
		c, err := state.DecodeCampaign(args)
		if err != nil {
			ix.Err = fail(ErrMalformedInput, "decode campaign: %v", err)
		} else {
			ix.Campaign = *c
		}
		return ix, nil

	case OpWithdraw:
		ix := Withdraw{}
		req, err := state.DecodeWithdrawRequest(args)
		if err != nil {
			ix.Err = fail(ErrMalformedInput, "decode withdraw request: %v", err)
		} else {
			ix.Request = *req
		}
		return ix, nil

	case OpDonate:
		return Donate{}, nil

	default:
		return nil, fail(ErrInvalidInstruction, "unknown opcode %d", data[0])
	}
}

// EncodeInstruction 编码指令数据（opcode + 参数），供客户端构造交易
func EncodeInstruction(ix Instruction) ([]byte, error) {
	switch v := ix.(type) {
	case CreateCampaign:
		args, err := state.EncodeCampaign(&v.Campaign)
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(OpCreateCampaign)}, args...), nil
	case Withdraw:
		args, err := state.EncodeWithdrawRequest(v.Request)
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(OpWithdraw)}, args...), nil
	case Donate:
		return []byte{byte(OpDonate)}, nil
	default:
		return nil, fmt.Errorf("unsupported instruction %T", ix)
	}
}
