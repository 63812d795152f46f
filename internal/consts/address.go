package consts

import "crowdfund-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr = "11111111111111111111111111111111"

	// DefaultCrowdfundProgramStr 未配置 program_id 时使用的众筹程序地址
	DefaultCrowdfundProgramStr = "64uKjyJnMEcq55sJR3G3DCcmB1NrJhGpy9QwWqVzqrGs"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对。
var (
	SystemProgram           = types.PubkeyFromBase58(SystemProgramStr)
	DefaultCrowdfundProgram = types.PubkeyFromBase58(DefaultCrowdfundProgramStr)
)
