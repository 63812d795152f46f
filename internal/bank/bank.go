package bank

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/bits"
	"sync"

	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/sysvar"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	solTypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// maxRecentBlockhashes 交易引用的 blockhash 必须在最近这么多个 slot 内
const maxRecentBlockhashes = 150

// ProcessFunc 程序入口，签名与 program.Process 一致
type ProcessFunc func(ictx *types.InvokeContext, accounts []*types.AccountInfo, data []byte) error

// CommitHook 交易成功提交后回调
type CommitHook func(ctx context.Context, res *Result)

type Options struct {
	Rent                 sysvar.Rent
	LamportsPerSignature uint64
}

// Bank 是单机的账户状态机：校验签名、扣手续费、执行指令、检查宿主规则并原子提交。
// 交易按调用顺序串行执行。
type Bank struct {
	mu sync.Mutex

	db       AccountsDB
	rent     sysvar.Rent
	fee      uint64
	programs map[types.Pubkey]ProcessFunc
	hooks    []CommitHook

	slot       uint64
	blockhash  types.Hash
	recent     map[string]struct{}
	recentList []string
	processed  map[string]struct{}
}

func NewBank(db AccountsDB, opts Options) *Bank {
	if opts.LamportsPerSignature == 0 {
		opts.LamportsPerSignature = consts.DefaultLamportsPerSignature
	}
	if opts.Rent.LamportsPerByteYear == 0 {
		opts.Rent = sysvar.DefaultRent()
	}

	b := &Bank{
		db:        db,
		rent:      opts.Rent,
		fee:       opts.LamportsPerSignature,
		programs:  make(map[types.Pubkey]ProcessFunc),
		recent:    make(map[string]struct{}),
		processed: make(map[string]struct{}),
	}
	b.programs[consts.SystemProgram] = ProcessSystem
	b.advance()
	return b
}

// RegisterProgram 注册一个程序入口
func (b *Bank) RegisterProgram(programID types.Pubkey, fn ProcessFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[programID] = fn
}

// OnCommit 注册提交回调（例如发布众筹事件）
func (b *Bank) OnCommit(hook CommitHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, hook)
}

func (b *Bank) Rent() sysvar.Rent {
	return b.rent
}

func (b *Bank) LamportsPerSignature() uint64 {
	return b.fee
}

func (b *Bank) Slot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot
}

// LatestBlockhash 返回最新 blockhash（base58），用于构造交易
func (b *Bank) LatestBlockhash() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockhash.String()
}

// GetAccount 读取账户，不存在时返回 nil, nil
func (b *Bank) GetAccount(ctx context.Context, key types.Pubkey) (*Account, error) {
	return b.db.GetAccount(ctx, key)
}

// Airdrop 直接给账户入账，只用于本地模拟
func (b *Bank) Airdrop(ctx context.Context, to types.Pubkey, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, err := b.db.GetAccount(ctx, to)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = emptyAccount()
	}
	sum, carry := bits.Add64(acc.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("airdrop to %s overflows balance", to)
	}
	acc.Lamports = sum
	if err := b.db.SetAccounts(ctx, []AccountUpdate{{Key: to, Account: acc}}); err != nil {
		return err
	}
	b.advance()
	return nil
}

// advance 推进一个 slot 并生成新的 blockhash
func (b *Bank) advance() {
	b.slot++
	b.blockhash = b.blockhash.Next()
	h := b.blockhash.String()
	b.recent[h] = struct{}{}
	b.recentList = append(b.recentList, h)
	if len(b.recentList) > maxRecentBlockhashes {
		delete(b.recent, b.recentList[0])
		b.recentList = b.recentList[1:]
	}
}

// ProcessTransaction 处理一笔已签名的交易。
// 交易本身失败记录在 Result.Err；返回的 error 只表示存储层故障。
func (b *Bank) ProcessTransaction(ctx context.Context, tx solTypes.Transaction) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := &Result{Slot: b.slot}
	if len(tx.Signatures) > 0 {
		res.Signature = base58.Encode(tx.Signatures[0])
	}

	// 1. 交易级校验：签名、blockhash、重放
	if err := b.verifyTransaction(tx); err != nil {
		res.Err = &TransactionError{Index: -1, Err: err}
		return res, nil
	}
	if _, dup := b.processed[res.Signature]; dup {
		res.Err = &TransactionError{Index: -1, Err: ErrAlreadyProcessed}
		return res, nil
	}

	msg := tx.Message
	keys := make([]types.Pubkey, len(msg.Accounts))
	for i, k := range msg.Accounts {
		keys[i] = types.Pubkey(k)
	}

	// 2. 加载账户
	loaded := make(map[types.Pubkey]*Account, len(keys))
	for _, k := range keys {
		if _, ok := loaded[k]; ok {
			continue
		}
		acc, err := b.db.GetAccount(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("load account %s: %w", k, err)
		}
		loaded[k] = acc
	}

	// 3. 扣手续费，失败的交易同样收取
	payer := keys[0]
	if loaded[payer] == nil {
		res.Err = &TransactionError{Index: -1, Err: ErrAccountNotFound}
		return res, nil
	}
	fee := b.fee * uint64(len(tx.Signatures))
	if loaded[payer].Owner != consts.SystemProgram || len(loaded[payer].Data) > 0 || loaded[payer].Lamports < fee {
		res.Err = &TransactionError{Index: -1, Err: ErrInsufficientFundsForFee}
		return res, nil
	}
	res.Fee = fee

	working := make(map[types.Pubkey]*Account, len(loaded))
	for k, acc := range loaded {
		if acc == nil {
			working[k] = emptyAccount()
			continue
		}
		working[k] = acc.Clone()
	}
	working[payer].Lamports -= fee

	// 4. 逐条执行指令
	for i, cix := range msg.Instructions {
		logs, err := b.executeInstruction(msg, keys, working, cix)
		res.Logs = append(res.Logs, logs...)
		if err != nil {
			res.Err = &TransactionError{Index: i, Err: err}
			break
		}
	}

	// 5. 提交：失败时只提交手续费
	var updates []AccountUpdate
	if res.Err != nil {
		charged := loaded[payer].Clone()
		charged.Lamports -= fee
		if charged.Lamports == 0 {
			charged = nil
		}
		updates = append(updates, AccountUpdate{Key: payer, Account: charged})
		res.Deltas = append(res.Deltas, AccountDelta{Key: payer, Pre: loaded[payer], Post: charged.Clone()})
	} else {
		for _, k := range keys {
			post := working[k]
			if post.Lamports == 0 {
				post = nil
			}
			if loaded[k].Equal(post) || hasDelta(res.Deltas, k) {
				continue
			}
			updates = append(updates, AccountUpdate{Key: k, Account: post})
			res.Deltas = append(res.Deltas, AccountDelta{Key: k, Pre: loaded[k], Post: post.Clone()})
		}
	}

	if err := b.db.SetAccounts(ctx, updates); err != nil {
		return nil, fmt.Errorf("commit transaction %s: %w", res.Signature, err)
	}
	b.processed[res.Signature] = struct{}{}
	b.advance()

	if res.Err != nil {
		logger.Debugf("[Bank:ProcessTransaction] 交易失败, sig=%s, slot=%d, err=%v", res.Signature, res.Slot, res.Err)
		return res, nil
	}
	logger.Debugf("[Bank:ProcessTransaction] 交易成功, sig=%s, slot=%d, 变更账户=%d", res.Signature, res.Slot, len(res.Deltas))
	for _, hook := range b.hooks {
		hook(ctx, res)
	}
	return res, nil
}

func hasDelta(deltas []AccountDelta, key types.Pubkey) bool {
	for _, d := range deltas {
		if d.Key == key {
			return true
		}
	}
	return false
}

// verifyTransaction 校验签名数量、ed25519 签名和 blockhash
func (b *Bank) verifyTransaction(tx solTypes.Transaction) error {
	msg := tx.Message
	numSigners := int(msg.Header.NumRequireSignatures)
	if numSigners == 0 || len(tx.Signatures) != numSigners || len(msg.Accounts) < numSigners {
		return ErrMissingSignatures
	}
	if _, ok := b.recent[msg.RecentBlockHash]; !ok {
		return ErrBlockhashNotFound
	}

	raw, err := msg.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureFailure, err)
	}
	for i := 0; i < numSigners; i++ {
		pub := ed25519.PublicKey(msg.Accounts[i][:])
		if !ed25519.Verify(pub, raw, tx.Signatures[i]) {
			return ErrSignatureFailure
		}
	}
	return nil
}

// isWritable 按消息头计算账户是否可写
func isWritable(header solTypes.MessageHeader, index, numAccounts int) bool {
	numSigners := int(header.NumRequireSignatures)
	if index < numSigners {
		return index < numSigners-int(header.NumReadonlySignedAccounts)
	}
	return index-numSigners < numAccounts-numSigners-int(header.NumReadonlyUnsignedAccounts)
}

// executeInstruction 执行一条指令并校验宿主规则，成功后把变更写回 working
func (b *Bank) executeInstruction(
	msg solTypes.Message,
	keys []types.Pubkey,
	working map[types.Pubkey]*Account,
	cix solTypes.CompiledInstruction,
) ([]string, error) {
	if cix.ProgramIDIndex < 0 || cix.ProgramIDIndex >= len(keys) {
		return nil, ErrInvalidAccountIndex
	}
	programID := keys[cix.ProgramIDIndex]
	logs := []string{fmt.Sprintf("Program %s invoke [1]", programID)}

	process, ok := b.programs[programID]
	if !ok {
		return logs, fmt.Errorf("%w: %s", ErrInvalidProgramForExecute, programID)
	}

	// 同一账户在指令中出现多次时共享同一个 AccountInfo
	infos := make([]*types.AccountInfo, len(cix.Accounts))
	byIndex := make(map[int]*types.AccountInfo, len(cix.Accounts))
	for i, idx := range cix.Accounts {
		if idx < 0 || idx >= len(keys) {
			return logs, ErrInvalidAccountIndex
		}
		if info, ok := byIndex[idx]; ok {
			infos[i] = info
			continue
		}
		isSigner := idx < int(msg.Header.NumRequireSignatures)
		info := working[keys[idx]].toInfo(keys[idx], isSigner, isWritable(msg.Header, idx, len(keys)))
		byIndex[idx] = info
		infos[i] = info
	}

	ictx := types.NewInvokeContext(programID, b.rent)
	err := process(ictx, infos, cix.Data)
	logs = append(logs, ictx.Logs()...)
	if err == nil {
		err = b.checkInstruction(programID, keys, working, byIndex)
	}
	if err != nil {
		logs = append(logs, fmt.Sprintf("Program %s failed: %v", programID, err))
		return logs, err
	}

	for idx, info := range byIndex {
		working[keys[idx]].applyInfo(info)
	}
	logs = append(logs, fmt.Sprintf("Program %s success", programID))
	return logs, nil
}

// checkInstruction 校验指令执行前后账户变化是否合法
func (b *Bank) checkInstruction(
	programID types.Pubkey,
	keys []types.Pubkey,
	working map[types.Pubkey]*Account,
	byIndex map[int]*types.AccountInfo,
) error {
	// 同一地址在消息中出现多次时只校验一次
	seen := make(map[types.Pubkey]*types.AccountInfo, len(byIndex))
	var preHi, preLo, postHi, postLo uint64
	for idx, info := range byIndex {
		key := keys[idx]
		if other, ok := seen[key]; ok {
			if other.Lamports != info.Lamports || string(other.Data) != string(info.Data) || other.Owner != info.Owner {
				return ErrDuplicateAccountOutOfSync
			}
			continue
		}
		seen[key] = info
		pre := working[key]

		var carry uint64
		preLo, carry = bits.Add64(preLo, pre.Lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, info.Lamports, 0)
		postHi += carry

		dataChanged := string(pre.Data) != string(info.Data)
		if !info.IsWritable {
			if dataChanged || pre.Owner != info.Owner {
				return fmt.Errorf("%w: %s", ErrReadonlyDataModified, key)
			}
			if pre.Lamports != info.Lamports {
				return fmt.Errorf("%w: %s", ErrReadonlyLamportChange, key)
			}
			continue
		}
		if info.Lamports < pre.Lamports && pre.Owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, key)
		}
		if pre.Owner != info.Owner && (programID != consts.SystemProgram || pre.Owner != consts.SystemProgram) {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, key)
		}
		if len(pre.Data) != len(info.Data) && programID != consts.SystemProgram {
			return fmt.Errorf("%w: %s", ErrAccountDataSizeChanged, key)
		}
		if dataChanged && pre.Owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, key)
		}
	}

	if preHi != postHi || preLo != postLo {
		return ErrUnbalancedInstruction
	}
	return nil
}
