// Package elections keeps a local mirror of the elections, tallies and voters of the Voting
// contract. The mirror is replaced as a whole on every refresh, never patched.
package elections

import (
	"maps"

	"github.com/ethereum/go-ethereum/common"
)

// Election is an election as listed by the contract. Ids start at 1.
type Election struct {
	ID   uint64 `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Candidate is a candidate of an election with its tally.
type Candidate struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Votes uint64 `json:"votes" yaml:"votes"`
}

// Detail is the candidate list of an election with every tally read in one pass.
type Detail struct {
	ElectionID uint64      `json:"electionId" yaml:"electionId"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
	Total      uint64      `json:"total" yaml:"total"`
}

// Percent returns the share of the total held by the candidate at index, 0 when nobody voted.
func (d Detail) Percent(index int) float64 {
	if d.Total == 0 || index < 0 || index >= len(d.Candidates) {
		return 0
	}

	return float64(d.Candidates[index].Votes) * 100 / float64(d.Total)
}

// Source names the strategy that produced a voter list.
type Source string

const (
	SourceNone       Source = ""
	SourcePrivileged Source = "privileged-read"
	SourceEventScan  Source = "event-scan"
)

// VoterList is the registered voters of an election. When Known is false the list could not be
// read at all and must not be shown as zero voters.
type VoterList struct {
	Voters []common.Address `json:"voters" yaml:"voters"`
	Known  bool             `json:"known" yaml:"known"`
	Source Source           `json:"source" yaml:"source"`
}

// Snapshot is an immutable view of the mirror. A refresh publishes a new Snapshot and never
// modifies a published one.
type Snapshot struct {
	Elections []Election
	Details   map[uint64]Detail
	Voters    map[uint64]VoterList
	// Advisory describes the last failed refresh, empty after a successful one.
	Advisory string
}

// Detail returns the cached detail of an election.
func (s *Snapshot) Detail(electionID uint64) (Detail, bool) {
	d, ok := s.Details[electionID]

	return d, ok
}

// VoterList returns the cached voter list of an election, unknown when never read.
func (s *Snapshot) VoterList(electionID uint64) VoterList {
	return s.Voters[electionID]
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Elections: s.Elections,
		Details:   maps.Clone(s.Details),
		Voters:    maps.Clone(s.Voters),
		Advisory:  s.Advisory,
	}
}
