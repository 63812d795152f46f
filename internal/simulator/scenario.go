package simulator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 场景步骤类型
const (
	ActionCreateAccount  = "create_account"
	ActionCreateCampaign = "create_campaign"
	ActionDonate         = "donate"
	ActionWithdraw       = "withdraw"
	ActionTransfer       = "transfer"
)

// Scenario 一个 yaml 场景：先给钱包空投，再按顺序执行步骤
type Scenario struct {
	Name    string   `yaml:"name"`
	Wallets []Wallet `yaml:"wallets"`
	Steps   []Step   `yaml:"steps"`
}

type Wallet struct {
	Name     string `yaml:"name"`
	Lamports uint64 `yaml:"lamports"`
}

// Record 场景中的众筹记录内容，Admin 为钱包名，缺省为发起者
type Record struct {
	Admin       string `yaml:"admin"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ImageLink   string `yaml:"image_link"`
}

// Step 场景中的一步。字段按 action 取用：
//
//	create_account:  payer, campaign, record（只用于计算空间）, extra
//	create_campaign: campaign, signer, record
//	donate:          campaign, signer, amount
//	withdraw:        campaign, signer, amount
//	transfer:        signer, to, amount
type Step struct {
	Name        string  `yaml:"name"`
	Action      string  `yaml:"action"`
	Payer       string  `yaml:"payer"`
	Signer      string  `yaml:"signer"`
	Campaign    string  `yaml:"campaign"`
	To          string  `yaml:"to"`
	Amount      uint64  `yaml:"amount"`
	Extra       uint64  `yaml:"extra"`
	Record      *Record `yaml:"record"`
	ExpectError string  `yaml:"expect_error"`
}

// LoadScenario 读取场景文件
func LoadScenario(path string) (*Scenario, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return ParseScenario(content)
}

// ParseScenario 解析并校验场景内容
func ParseScenario(content []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 检查名称引用和必填字段，尽早暴露场景文件的笔误
func (s *Scenario) Validate() error {
	wallets := make(map[string]struct{}, len(s.Wallets))
	for _, w := range s.Wallets {
		if w.Name == "" {
			return fmt.Errorf("wallet without name")
		}
		if _, dup := wallets[w.Name]; dup {
			return fmt.Errorf("duplicate wallet %q", w.Name)
		}
		wallets[w.Name] = struct{}{}
	}

	needWallet := func(i int, field, name string) error {
		if name == "" {
			return fmt.Errorf("step %d: %s is required", i, field)
		}
		if _, ok := wallets[name]; !ok {
			return fmt.Errorf("step %d: unknown wallet %q in %s", i, name, field)
		}
		return nil
	}

	for i, st := range s.Steps {
		var err error
		switch strings.TrimSpace(st.Action) {
		case ActionCreateAccount:
			if err = needWallet(i, "payer", st.Payer); err == nil && (st.Campaign == "" || st.Record == nil) {
				err = fmt.Errorf("step %d: campaign and record are required", i)
			}
		case ActionCreateCampaign:
			if err = needWallet(i, "signer", st.Signer); err == nil && (st.Campaign == "" || st.Record == nil) {
				err = fmt.Errorf("step %d: campaign and record are required", i)
			}
		case ActionDonate, ActionWithdraw:
			if err = needWallet(i, "signer", st.Signer); err == nil && st.Campaign == "" {
				err = fmt.Errorf("step %d: campaign is required", i)
			}
		case ActionTransfer:
			if err = needWallet(i, "signer", st.Signer); err == nil && st.To == "" {
				err = fmt.Errorf("step %d: to is required", i)
			}
		default:
			err = fmt.Errorf("step %d: unknown action %q", i, st.Action)
		}
		if err != nil {
			return err
		}
		if st.Record != nil && st.Record.Admin != "" {
			if _, ok := wallets[st.Record.Admin]; !ok {
				return fmt.Errorf("step %d: unknown wallet %q in record.admin", i, st.Record.Admin)
			}
		}
	}
	return nil
}
