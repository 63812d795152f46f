package sysvar

import "math"

// AccountStorageOverhead 每个账户在数据之外额外计费的元数据字节数
const AccountStorageOverhead uint64 = 128

// 主网默认租金参数
const (
	DefaultLamportsPerByteYear uint64  = 3480
	DefaultExemptionThreshold  float64 = 2.0
	DefaultBurnPercent         uint8   = 50
)

// Rent 租金参数，与链上 Rent sysvar 保持同样的字段
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64 // 免租需要预存的年数
	BurnPercent         uint8
}

// DefaultRent 返回主网默认租金参数
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance 计算长度为 dataLen 的账户免租所需的最低余额。
// 公式：(128 + dataLen) * lamportsPerByteYear * exemptionThreshold，结果向下取整。
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := AccountStorageOverhead + dataLen
	perYear := float64(bytes) * float64(r.LamportsPerByteYear)
	total := perYear * r.ExemptionThreshold
	if total >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(total)
}

// IsExempt 判断余额是否满足免租
func (r Rent) IsExempt(lamports, dataLen uint64) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
