package ledger

// carbonCreditABI is the subset of the CarbonCredit contract used by the service.
const carbonCreditABI = `[
  {
    "inputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "uint256", "name": "submissionId", "type": "uint256"}
    ],
    "name": "issueCredits",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "submissionId", "type": "uint256"},
      {"internalType": "int256", "name": "latE7", "type": "int256"},
      {"internalType": "int256", "name": "lngE7", "type": "int256"}
    ],
    "name": "recordSubmissionLocation",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "to", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "transferCredits",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getCarbonBalance",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

// Contract method names.
const (
	methodIssueCredits   = "issueCredits"
	methodRecordLocation = "recordSubmissionLocation"
	methodTransfer       = "transferCredits"
	methodBalance        = "getCarbonBalance"
)

// Gas limits per transaction kind.
const (
	gasIssueCredits   = 200000
	gasRecordLocation = 150000
	gasTransfer       = 100000
)
