package types

// AccountInfo 是宿主在一次指令执行期间借给程序的账户视图。
// 同一条指令中重复出现的账户共享同一个 *AccountInfo。
type AccountInfo struct {
	Key        Pubkey // 账户地址
	Owner      Pubkey // 有权写 Data / 扣减 Lamports 的程序
	IsSigner   bool   // 交易签名集合中是否包含该账户
	IsWritable bool   // 交易是否将该账户声明为可写
	Executable bool
	Lamports   uint64 // 余额（最小单位）
	Data       []byte // 账户数据；长度由宿主分配，程序只能原地覆盖
}

// DataLen 返回账户数据长度
func (a *AccountInfo) DataLen() uint64 {
	return uint64(len(a.Data))
}
