package consts

const (
	// LamportsPerSOL 1 SOL = 10^9 lamports
	LamportsPerSOL uint64 = 1_000_000_000

	// DefaultLamportsPerSignature 本地 bank 每个签名收取的手续费
	DefaultLamportsPerSignature uint64 = 5000

	// MaxAccountDataSize 单个账户允许分配的最大数据长度（10MB）
	MaxAccountDataSize uint64 = 10 * 1024 * 1024
)
