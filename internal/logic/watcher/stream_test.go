package watcher

import (
	"testing"

	"crowdfund-sol/internal/logic/progress"

	"github.com/mr-tron/base58"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertAccountUpdate(t *testing.T) {
	sig := []byte{1, 2, 3, 4}
	u := &pb.SubscribeUpdateAccount{
		Slot: 321,
		Account: &pb.SubscribeUpdateAccountInfo{
			Pubkey:       testAccount[:],
			Lamports:     900,
			Owner:        testProgram[:],
			Data:         []byte{7},
			WriteVersion: 12,
			TxnSignature: sig,
		},
	}

	got, err := convertAccountUpdate(u)
	require.NoError(t, err)
	assert.Equal(t, testAccount, got.Pubkey)
	assert.Equal(t, testProgram, got.Owner)
	assert.Equal(t, uint64(900), got.Lamports)
	assert.Equal(t, progress.Position{Slot: 321, WriteVersion: 12}, got.Position)
	assert.Equal(t, base58.Encode(sig), got.Signature)
	assert.Equal(t, progress.SourceGrpc, got.Source)

	_, err = convertAccountUpdate(&pb.SubscribeUpdateAccount{Slot: 1})
	assert.Error(t, err, "缺少账户信息")

	_, err = convertAccountUpdate(&pb.SubscribeUpdateAccount{Account: &pb.SubscribeUpdateAccountInfo{Pubkey: []byte{1}}})
	assert.Error(t, err, "地址长度不对")
}

func TestBuildSubscribeRequest(t *testing.T) {
	req := buildSubscribeRequest([]string{testAccount.String()}, parseCommitment("finalized"))
	require.Contains(t, req.Accounts, "campaigns")
	assert.Equal(t, []string{testAccount.String()}, req.Accounts["campaigns"].Account)
	assert.Equal(t, pb.CommitmentLevel_FINALIZED, req.GetCommitment())
	assert.Empty(t, req.Blocks, "只订阅账户")

	assert.Equal(t, pb.CommitmentLevel_CONFIRMED, parseCommitment(""))
	assert.Equal(t, pb.CommitmentLevel_PROCESSED, parseCommitment("Processed"))
}
