package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/votechain/votechain-client/pkg/commands/text"
)

var (
	accountShort = "Show the connected account and its role"

	accountLong = text.LongDesc(`
		Connects the configured wallet and shows the active account, the chain, the Voting
		contract and whether the account is the contract owner (admin).
	`)

	accountExample = text.Examples(`
		# Show the active account
		votechain account

		# Against another configuration, as yaml
		votechain account -c sepolia.yml -o yaml
	`)
)

type accountView struct {
	Account        string `yaml:"account"`
	Admin          bool   `yaml:"admin"`
	Owner          string `yaml:"owner,omitempty"`
	Chain          string `yaml:"chain"`
	ChainSelector  uint64 `yaml:"chainSelector,omitempty"`
	Contract       string `yaml:"contract,omitempty"`
	TypeAndVersion string `yaml:"typeAndVersion,omitempty"`
}

// newAccountCmd creates the "account" command.
func newAccountCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "account",
		Short:   accountShort,
		Long:    accountLong,
		Example: accountExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAccount(cmd, cfg)
		},
	}
}

// runAccount executes the account command logic.
func runAccount(cmd *cobra.Command, cfg Config) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := connectClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	view := accountView{
		Admin:         c.Roles.IsAdmin(),
		Chain:         c.Chain.String(),
		ChainSelector: c.Chain.Selector,
	}
	if account, ok := c.Session.Account(); ok {
		view.Account = account.Hex()
	}
	if owner, ok := c.Roles.Owner(); ok {
		view.Owner = owner.Hex()
	}
	if c.Binding != nil {
		h := c.Binding.Handle()
		view.Contract = h.Address.Hex()
		view.TypeAndVersion = h.TypeAndVersion.String()
	}

	return p.render(view, nil, [][]string{
		{"Account", text.OrDash(view.Account)},
		{"Admin", text.YesNo(view.Admin)},
		{"Owner", text.OrDash(view.Owner)},
		{"Chain", view.Chain},
		{"Selector", text.OrDash(selectorString(view.ChainSelector))},
		{"Contract", text.OrDash(view.Contract)},
		{"Type", text.OrDash(view.TypeAndVersion)},
	})
}

func selectorString(selector uint64) string {
	if selector == 0 {
		return ""
	}

	return fmt.Sprint(selector)
}
