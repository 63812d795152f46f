package types

import "fmt"

// RentCalculator 计算免租所需的最低余额，结果只取决于数据长度
type RentCalculator interface {
	MinimumBalance(dataLen uint64) uint64
}

// InvokeContext 是宿主传给程序的显式执行上下文：
// 程序身份、租金参数以及日志收集（对应链上的 msg!）。
type InvokeContext struct {
	ProgramID Pubkey
	Rent      RentCalculator

	logs []string
}

// NewInvokeContext 创建一次指令调用的上下文
func NewInvokeContext(programID Pubkey, rent RentCalculator) *InvokeContext {
	return &InvokeContext{
		ProgramID: programID,
		Rent:      rent,
	}
}

// Msgf 记录一条程序日志
func (c *InvokeContext) Msgf(format string, args ...any) {
	c.logs = append(c.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// Logs 返回本次调用产生的全部日志
func (c *InvokeContext) Logs() []string {
	return c.logs
}
