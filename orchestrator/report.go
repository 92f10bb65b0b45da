package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Report is the record of a settled action.
type Report struct {
	ID        string         `json:"id" yaml:"id"`
	Kind      Kind           `json:"kind" yaml:"kind"`
	Target    string         `json:"target" yaml:"target"`
	Account   common.Address `json:"account" yaml:"account"`
	Call      string         `json:"call" yaml:"call"`
	StartedAt time.Time      `json:"startedAt" yaml:"startedAt"`
	SettledAt time.Time      `json:"settledAt" yaml:"settledAt"`
	// Phase is the state the action failed in, or Settled on success.
	Phase   State       `json:"phase" yaml:"phase"`
	Gas     uint64      `json:"gas,omitempty" yaml:"gas,omitempty"`
	TxHash  common.Hash `json:"txHash" yaml:"txHash"`
	Block   uint64      `json:"block,omitempty" yaml:"block,omitempty"`
	Success bool        `json:"success" yaml:"success"`
	// Message is the line shown to the user, prefixed with ✓ or ✗.
	Message string `json:"message" yaml:"message"`
	// Reason is the decoded failure reason, empty on success.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func newReport(kind Kind, target string, account common.Address, call string) Report {
	return Report{
		ID:        uuid.New().String(),
		Kind:      kind,
		Target:    target,
		Account:   account,
		Call:      call,
		StartedAt: time.Now(),
	}
}

// Duration is the time the action took to settle.
func (r Report) Duration() time.Duration {
	return r.SettledAt.Sub(r.StartedAt)
}

var ErrReportNotFound = errors.New("report not found")

// Reporter stores reports of settled actions.
type Reporter interface {
	AddReport(report Report) error
	GetReport(id string) (Report, error)
	GetReports() ([]Report, error)
}

// MemoryReporter stores reports in memory. It is safe for concurrent use.
type MemoryReporter struct {
	mu      sync.RWMutex
	reports []Report
}

func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (m *MemoryReporter) AddReport(report Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports = append(m.reports, report)

	return nil
}

// GetReport returns a report by ID, ErrReportNotFound when missing.
func (m *MemoryReporter) GetReport(id string) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.reports {
		if r.ID == id {
			return r, nil
		}
	}

	return Report{}, fmt.Errorf("report_id %s: %w", id, ErrReportNotFound)
}

// GetReports returns every report in the order they settled.
func (m *MemoryReporter) GetReports() ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make([]Report, len(m.reports))
	copy(reports, m.reports)

	return reports, nil
}
