package voting

// ContractName is the name the contract is deployed and stored under.
const ContractName = "Voting"

// DefaultTypeAndVersion is the contract version this package is written against.
const DefaultTypeAndVersion = "Voting 1.0.0"

// VotingABI is the interface of the Voting contract.
const VotingABI = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getElectionCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getElectionName","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getCandidates","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[{"name":"","type":"string[]"}]},
  {"type":"function","name":"getVotes","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"},{"name":"candidateIndex","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"votesPerCandidate","stateMutability":"view","inputs":[{"name":"candidate","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getVoters","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"createElection","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"candidateNames","type":"string[]"}],"outputs":[]},
  {"type":"function","name":"registerVoterForElection","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"voter","type":"address"}],"outputs":[]},
  {"type":"function","name":"registerVotersForElection","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"voters","type":"address[]"}],"outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"candidateIndex","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"ElectionCreated","anonymous":false,"inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"name","type":"string","indexed":false}]},
  {"type":"event","name":"VoterRegistered","anonymous":false,"inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"voter","type":"address","indexed":true}]},
  {"type":"event","name":"VoteCast","anonymous":false,"inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"candidateIndex","type":"uint256","indexed":true},{"name":"voter","type":"address","indexed":true}]}
]`

// Method and event names.
const (
	MethodOwner             = "owner"
	MethodElectionCount     = "getElectionCount"
	MethodElectionName      = "getElectionName"
	MethodCandidates        = "getCandidates"
	MethodVotes             = "getVotes"
	MethodVotesPerCandidate = "votesPerCandidate"
	MethodVoters            = "getVoters"
	MethodCreateElection    = "createElection"
	MethodRegisterVoter     = "registerVoterForElection"
	MethodRegisterVoters    = "registerVotersForElection"
	MethodVote              = "vote"

	EventElectionCreated = "ElectionCreated"
	EventVoterRegistered = "VoterRegistered"
	EventVoteCast        = "VoteCast"
)
