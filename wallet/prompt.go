package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var _ Confirmer = (*Prompt)(nil)

// Prompt is an interactive Confirmer reading y/n answers from in.
type Prompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) ApproveConnection(ctx context.Context, accounts []common.Address) (bool, error) {
	hexes := make([]string, len(accounts))
	for i, a := range accounts {
		hexes[i] = a.Hex()
	}

	return p.ask(ctx, fmt.Sprintf("Connect account(s) %s?", strings.Join(hexes, ", ")))
}

func (p *Prompt) ConfirmTransaction(ctx context.Context, req SignRequest) (bool, error) {
	to := "contract creation"
	if req.To != nil {
		to = req.To.Hex()
	}

	return p.ask(ctx, fmt.Sprintf("Sign transaction from %s to %s (nonce %d, gas %d, %d bytes of data) on chain %v?",
		req.From.Hex(), to, req.Nonce, req.Gas, len(req.Data), req.ChainID))
}

func (p *Prompt) ask(ctx context.Context, question string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(p.out, "%s [y/N]: ", question); err != nil {
		return false, err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
