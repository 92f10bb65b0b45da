// Package client assembles the Voting client from its configuration: chain connection,
// contract binding, wallet session, role resolution, election sync and the write orchestrator.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/config"
	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/contract/voting"
	"github.com/votechain/votechain-client/elections"
	"github.com/votechain/votechain-client/orchestrator"
	"github.com/votechain/votechain-client/pkg/logger"
	"github.com/votechain/votechain-client/roles"
	"github.com/votechain/votechain-client/wallet"
)

// Option overrides a dependency the client would otherwise build from the configuration.
type Option func(*options)

type options struct {
	lggr      logger.Logger
	onchain   evm.OnchainClient
	provider  wallet.Provider
	confirmer wallet.Confirmer
	observer  func(orchestrator.Report)
	polled    func(elections.Detail, error)
}

func WithLogger(lggr logger.Logger) Option {
	return func(o *options) {
		o.lggr = lggr
	}
}

// WithOnchainClient replaces the RPC MultiClient.
func WithOnchainClient(c evm.OnchainClient) Option {
	return func(o *options) {
		o.onchain = c
	}
}

// WithProvider replaces the wallet provider built from the wallet section.
func WithProvider(p wallet.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithConfirmer sets who approves wallet requests. Defaults to a prompt on the terminal unless
// wallet.auto_approve is set.
func WithConfirmer(c wallet.Confirmer) Option {
	return func(o *options) {
		o.confirmer = c
	}
}

// WithReportObserver is called with the report of every settled write action.
func WithReportObserver(fn func(orchestrator.Report)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithPollObserver is called after every load of the election selected on the Poller.
func WithPollObserver(fn func(elections.Detail, error)) Option {
	return func(o *options) {
		o.polled = fn
	}
}

// Client is the assembled Voting client. Voting and Binding are nil when no contract is
// available; reads are then empty and writes fail with contract.ErrNoHandle.
type Client struct {
	Config       *config.Config
	Logger       logger.Logger
	Chain        evm.Chain
	Binding      *contract.Binding
	Voting       *voting.Voting
	Session      *wallet.Session
	Roles        *roles.Resolver
	Syncer       *elections.Syncer
	Poller       *elections.Poller
	Orchestrator *orchestrator.Orchestrator

	closers []func()
}

// New builds the client described by cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{Config: cfg}
	if o.lggr == nil {
		lcfg, err := cfg.Log.Logger()
		if err != nil {
			return nil, err
		}
		if o.lggr, err = lcfg.New(); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	c.Logger = o.lggr

	onchain := o.onchain
	if onchain == nil {
		var mcOpts []func(*evm.MultiClient)
		if cfg.Chain.Retry != nil {
			mcOpts = append(mcOpts, evm.WithRetryConfig(*cfg.Chain.Retry))
		}
		mc, err := evm.NewMultiClient(c.Logger, cfg.Chain.RPCConfig(), mcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chain %d: %w", cfg.Chain.ChainID, err)
		}
		c.closers = append(c.closers, mc.Close)
		onchain = mc
	}
	c.Chain = evm.NewChain(cfg.Chain.ChainID, onchain, evm.ConfirmFuncGeth(onchain, cfg.Chain.ConfirmTimeout))

	handle, err := contract.LoadHandle(cfg.Contract.HandleConfig())
	switch {
	case errors.Is(err, contract.ErrNoHandle):
		c.Logger.Warnw("No Voting contract configured, reads are empty and actions disabled", "chain", c.Chain.String())
	case err != nil:
		c.close()
		return nil, err
	default:
		if c.Binding, err = contract.NewBinding(c.Logger, handle, onchain, c.Chain.Confirm); err != nil {
			c.close()
			return nil, err
		}
		c.Voting = voting.New(c.Binding)
		if code, cerr := onchain.CodeAt(ctx, handle.Address, nil); cerr == nil && len(code) == 0 {
			c.Logger.Warnw("No contract code at configured address, reads will fail", "address", handle.Address.Hex())
		}
		c.Logger.Infow("Voting contract bound", "address", handle.Address.Hex(), "contract", handle.TypeAndVersion.String(), "chain", c.Chain.String())
	}

	provider, err := newProvider(cfg.Wallet, o)
	if err != nil {
		c.close()
		return nil, err
	}
	c.Session = wallet.NewSession(c.Logger, provider)
	c.closers = append(c.closers, c.Session.Close)

	var (
		owners roles.OwnerReader
		reader elections.Reader
		writer orchestrator.Transactor
	)
	syncOpts := []elections.Option{elections.WithCaller(c.Session.Account)}
	if c.Voting != nil {
		owners, reader, writer = c.Voting, c.Voting, c.Binding
		syncOpts = append(syncOpts, elections.WithVoterStrategies(
			elections.PrivilegedRead{Reader: c.Voting},
			elections.EventScanRead{Logs: c.Voting, StartBlock: cfg.Contract.StartBlock, ChunkSize: cfg.Sync.LogChunkSize},
		))
	}

	c.Roles = roles.NewResolver(c.Logger, owners, c.Session)
	c.closers = append(c.closers, c.Roles.Close)
	c.Syncer = elections.NewSyncer(c.Logger, reader, syncOpts...)
	pollOpts := []elections.PollerOption{elections.WithInterval(cfg.Sync.PollInterval)}
	if o.polled != nil {
		pollOpts = append(pollOpts, elections.WithObserver(o.polled))
	}
	c.Poller = elections.NewPoller(c.Logger, c.Syncer, pollOpts...)
	c.closers = append(c.closers, c.Poller.Stop)

	orchOpts := []orchestrator.Option{
		orchestrator.WithRefresher(c.Syncer),
		orchestrator.WithVoteRefreshDelay(cfg.Sync.VoteRefreshDelay),
	}
	if o.observer != nil {
		orchOpts = append(orchOpts, orchestrator.WithObserver(o.observer))
	}
	c.Orchestrator = orchestrator.New(c.Logger, writer, c.Session, c.Chain, orchOpts...)
	c.closers = append(c.closers, c.Orchestrator.Wait)

	return c, nil
}

// Degraded reports whether the client runs without a contract.
func (c *Client) Degraded() bool {
	return c.Voting == nil
}

// Connect connects the wallet and resolves the contract owner. An owner read failure is not
// fatal: nobody is admin until a later Connect or Roles.Refresh succeeds.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Session.Connect(ctx); err != nil {
		return err
	}
	if err := c.Roles.Refresh(ctx); err != nil {
		c.Logger.Warnw("Owner unknown, admin actions hidden", "err", err)
	}

	return nil
}

// Close releases the poll, the wallet subscription and the RPC connections, in reverse order
// of acquisition.
func (c *Client) Close() {
	c.close()
	_ = c.Logger.Sync()
}

func (c *Client) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newProvider(cfg config.WalletConfig, o *options) (wallet.Provider, error) {
	if o.provider != nil {
		return o.provider, nil
	}

	confirmer := o.confirmer
	if confirmer == nil {
		if cfg.AutoApprove {
			confirmer = wallet.AutoApprove{}
		} else {
			confirmer = wallet.NewPrompt(os.Stdin, os.Stderr)
		}
	}

	switch {
	case cfg.KeystoreDir != "":
		return wallet.NewKeystoreProvider(cfg.KeystoreDir, cfg.Passphrase, confirmer), nil
	case len(cfg.PrivateKeys) > 0:
		p, err := wallet.NewKeyProvider(cfg.PrivateKeys, wallet.WithConfirmer(confirmer), wallet.WithGasLimit(cfg.GasLimit))
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		// No wallet: Connect fails with wallet.ErrNoProvider and reads still work.
		return nil, nil
	}
}
