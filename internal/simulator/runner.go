package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"crowdfund-sol/internal/bank"
	"crowdfund-sol/internal/client"
	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/logic/program"
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	solTypes "github.com/blocto/solana-go-sdk/types"
)

var ErrUnknownCampaign = errors.New("campaign account not created yet")

// StepReport 单步执行结果
type StepReport struct {
	Index       int
	Name        string
	Action      string
	Signature   string
	Slot        uint64
	Fee         uint64
	Err         string // 交易错误，成功时为空
	ExpectError string
	Passed      bool
	Logs        []string
	Events      []event.CampaignEvent
}

// Report 场景执行报告
type Report struct {
	Scenario  string
	Steps     []StepReport
	Addresses map[string]types.Pubkey
	Balances  map[string]uint64
	Campaigns map[string]*state.Campaign
}

// Passed 所有步骤都符合预期
func (r *Report) Passed() bool {
	for _, st := range r.Steps {
		if !st.Passed {
			return false
		}
	}
	return true
}

// Names 报告中出现的账户名（排序后）
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Addresses))
	for n := range r.Addresses {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Runner 在本地 bank 上执行场景
type Runner struct {
	bank      *bank.Bank
	programID types.Pubkey
	events    *event.Collector

	wallets  map[string]solTypes.Account
	storages map[string]solTypes.Account
}

// NewRunner events 须已通过 event.CommitHook 挂在 bank 上
func NewRunner(b *bank.Bank, programID types.Pubkey, events *event.Collector) *Runner {
	return &Runner{
		bank:      b,
		programID: programID,
		events:    events,
		wallets:   make(map[string]solTypes.Account),
		storages:  make(map[string]solTypes.Account),
	}
}

// Run 执行场景。交易失败记入报告；返回的 error 只表示场景无法继续（存储故障、引用错误）
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Report, error) {
	report := &Report{Scenario: s.Name}

	// 1. 创建并空投钱包
	for _, w := range s.Wallets {
		acc := solTypes.NewAccount()
		r.wallets[w.Name] = acc
		if w.Lamports == 0 {
			continue
		}
		if err := r.bank.Airdrop(ctx, client.PubkeyOf(acc), w.Lamports); err != nil {
			return nil, fmt.Errorf("airdrop %s: %w", w.Name, err)
		}
	}

	// 2. 按顺序执行步骤
	for i, st := range s.Steps {
		sr, err := r.runStep(ctx, i, st)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, st.Action, err)
		}
		if sr.Passed {
			logger.Debugf("[Simulator:Run] step %d %s ok, sig=%s", i, st.Action, sr.Signature)
		} else {
			logger.Warnf("[Simulator:Run] step %d %s 与预期不符, expect=%q, got=%q", i, st.Action, sr.ExpectError, sr.Err)
		}
		report.Steps = append(report.Steps, sr)
	}

	// 3. 汇总最终状态
	if err := r.snapshot(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, i int, st Step) (StepReport, error) {
	sr := StepReport{Index: i, Name: st.Name, Action: st.Action, ExpectError: st.ExpectError}

	feePayer, signers, ixs, err := r.buildStep(st)
	if err != nil {
		return sr, err
	}
	tx, err := client.BuildTransaction(feePayer, signers, r.bank.LatestBlockhash(), ixs...)
	if err != nil {
		return sr, err
	}

	before := len(r.events.Events())
	res, err := r.bank.ProcessTransaction(ctx, tx)
	if err != nil {
		return sr, err
	}
	sr.Signature = res.Signature
	sr.Slot = res.Slot
	sr.Fee = res.Fee
	sr.Logs = res.Logs
	if res.Err != nil {
		sr.Err = res.Err.Error()
	}
	if all := r.events.Events(); len(all) > before {
		sr.Events = all[before:]
	}
	sr.Passed = MatchError(st.ExpectError, res.Err)
	return sr, nil
}

func (r *Runner) buildStep(st Step) (solTypes.Account, []solTypes.Account, []solTypes.Instruction, error) {
	switch st.Action {
	case ActionCreateAccount:
		payer := r.wallets[st.Payer]
		storage, ok := r.storages[st.Campaign]
		if !ok {
			storage = solTypes.NewAccount()
			r.storages[st.Campaign] = storage
		}
		record := r.record(st.Record, payer)
		ix := client.NewCreateStorageAccountInstruction(client.CreateStorageAccountParam{
			Payer:     client.PubkeyOf(payer),
			Storage:   client.PubkeyOf(storage),
			ProgramID: r.programID,
			Campaign:  &record,
			Rent:      r.bank.Rent(),
			Extra:     st.Extra,
		})
		return payer, []solTypes.Account{storage}, []solTypes.Instruction{ix}, nil

	case ActionCreateCampaign:
		signer := r.wallets[st.Signer]
		storage, ok := r.storages[st.Campaign]
		if !ok {
			return signer, nil, nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, st.Campaign)
		}
		ix, err := client.NewCreateCampaignInstruction(client.CreateCampaignParam{
			ProgramID: r.programID,
			Storage:   client.PubkeyOf(storage),
			Creator:   client.PubkeyOf(signer),
			Campaign:  r.record(st.Record, signer),
		})
		return signer, nil, []solTypes.Instruction{ix}, err

	case ActionDonate:
		donor := r.wallets[st.Signer]
		storage, ok := r.storages[st.Campaign]
		if !ok {
			return donor, nil, nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, st.Campaign)
		}
		funding := solTypes.NewAccount()
		ixs, err := client.NewDonateInstructions(client.DonateParam{
			ProgramID: r.programID,
			Storage:   client.PubkeyOf(storage),
			Funding:   client.PubkeyOf(funding),
			Donor:     client.PubkeyOf(donor),
			Amount:    st.Amount,
		})
		return donor, []solTypes.Account{funding}, ixs, err

	case ActionWithdraw:
		admin := r.wallets[st.Signer]
		storage, ok := r.storages[st.Campaign]
		if !ok {
			return admin, nil, nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, st.Campaign)
		}
		ix, err := client.NewWithdrawInstruction(client.WithdrawParam{
			ProgramID: r.programID,
			Storage:   client.PubkeyOf(storage),
			Admin:     client.PubkeyOf(admin),
			Amount:    st.Amount,
		})
		return admin, nil, []solTypes.Instruction{ix}, err

	case ActionTransfer:
		from := r.wallets[st.Signer]
		to, err := r.resolve(st.To)
		if err != nil {
			return from, nil, nil, err
		}
		ix := client.NewTransferInstruction(client.PubkeyOf(from), to, st.Amount)
		return from, nil, []solTypes.Instruction{ix}, nil

	default:
		return solTypes.Account{}, nil, nil, fmt.Errorf("unknown action %q", st.Action)
	}
}

// record 把场景记录转成 state.Campaign，admin 缺省为 fallback
func (r *Runner) record(rec *Record, fallback solTypes.Account) state.Campaign {
	admin := client.PubkeyOf(fallback)
	if rec.Admin != "" {
		admin = client.PubkeyOf(r.wallets[rec.Admin])
	}
	return state.Campaign{
		Admin:       admin,
		Name:        rec.Name,
		Description: rec.Description,
		ImageLink:   rec.ImageLink,
	}
}

// resolve 按名称查找钱包或 storage 账户
func (r *Runner) resolve(name string) (types.Pubkey, error) {
	if acc, ok := r.wallets[name]; ok {
		return client.PubkeyOf(acc), nil
	}
	if acc, ok := r.storages[name]; ok {
		return client.PubkeyOf(acc), nil
	}
	return types.Pubkey{}, fmt.Errorf("unknown account %q", name)
}

func (r *Runner) snapshot(ctx context.Context, report *Report) error {
	report.Addresses = make(map[string]types.Pubkey, len(r.wallets)+len(r.storages))
	report.Balances = make(map[string]uint64, len(r.wallets)+len(r.storages))
	report.Campaigns = make(map[string]*state.Campaign, len(r.storages))

	load := func(name string, key types.Pubkey) (*bank.Account, error) {
		report.Addresses[name] = key
		acc, err := r.bank.GetAccount(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		if acc != nil {
			report.Balances[name] = acc.Lamports
		}
		return acc, nil
	}

	for name, w := range r.wallets {
		if _, err := load(name, client.PubkeyOf(w)); err != nil {
			return err
		}
	}
	for name, s := range r.storages {
		acc, err := load(name, client.PubkeyOf(s))
		if err != nil {
			return err
		}
		if acc == nil || acc.Owner != r.programID {
			continue
		}
		if c, err := state.DecodeCampaignPrefix(acc.Data); err == nil {
			report.Campaigns[name] = c
		}
	}
	return nil
}

// MatchError 判断交易错误是否符合预期。
// expect 为空表示应成功；为程序错误名（如 Unauthorized）时按错误码比较；否则按子串匹配。
func MatchError(expect string, err error) bool {
	expect = strings.TrimSpace(expect)
	if expect == "" {
		return err == nil
	}
	if err == nil {
		return false
	}
	if code, ok := program.ParseErrorCode(expect); ok {
		got, ok := program.CodeOf(err)
		return ok && got == code
	}
	return strings.Contains(err.Error(), expect)
}
