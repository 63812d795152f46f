package sysvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRent_MinimumBalance(t *testing.T) {
	rent := DefaultRent()

	// 空账户只计 128 字节元数据
	assert.Equal(t, uint64(128*3480*2), rent.MinimumBalance(0), "空账户免租额错误")
	assert.Equal(t, uint64(890880), rent.MinimumBalance(0))

	// 165 字节（token account）对应主网已知值
	assert.Equal(t, uint64(2039280), rent.MinimumBalance(165), "165 字节免租额应与主网一致")
}

func TestRent_IsExempt(t *testing.T) {
	rent := DefaultRent()
	min := rent.MinimumBalance(100)

	assert.True(t, rent.IsExempt(min, 100), "恰好等于最低余额应免租")
	assert.False(t, rent.IsExempt(min-1, 100), "低于最低余额不应免租")
}

func TestRent_CustomParams(t *testing.T) {
	rent := Rent{LamportsPerByteYear: 10, ExemptionThreshold: 1.5}
	assert.Equal(t, uint64((128+2)*10*3/2), rent.MinimumBalance(2))
}
