package network

// LendingABI covers the lending contract functions this service calls.
const LendingABI = `[
  {"type":"function","name":"initiateVerification","stateMutability":"nonpayable",
   "inputs":[{"name":"ipAsset","type":"address"},{"name":"externalId","type":"string"},{"name":"assessedValue","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"recordVerificationResult","stateMutability":"nonpayable",
   "inputs":[{"name":"externalId","type":"string"},{"name":"isVerified","type":"bool"},{"name":"riskScore","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"handleVerificationTimeout","stateMutability":"nonpayable",
   "inputs":[{"name":"externalId","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"createLoan","stateMutability":"nonpayable",
   "inputs":[{"name":"ipAsset","type":"address"},{"name":"loanAmount","type":"uint256"},{"name":"duration","type":"uint256"},{"name":"loanToken","type":"address"},{"name":"borrowerChainId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"repayLoan","stateMutability":"nonpayable",
   "inputs":[{"name":"loanId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getIPCollateral","stateMutability":"view",
   "inputs":[{"name":"ipAsset","type":"address"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"ipAsset","type":"address"},
     {"name":"assessedValue","type":"uint256"},
     {"name":"riskScore","type":"uint256"},
     {"name":"isEligible","type":"bool"},
     {"name":"lastValidated","type":"uint256"},
     {"name":"verificationHash","type":"bytes32"},
     {"name":"externalId","type":"string"},
     {"name":"status","type":"uint8"},
     {"name":"verificationTimestamp","type":"uint256"}]}]},
  {"type":"function","name":"getLoan","stateMutability":"view",
   "inputs":[{"name":"loanId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"borrower","type":"address"},
     {"name":"ipAsset","type":"address"},
     {"name":"collateralValue","type":"uint256"},
     {"name":"loanAmount","type":"uint256"},
     {"name":"interestRate","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"duration","type":"uint256"},
     {"name":"loanToken","type":"address"},
     {"name":"isActive","type":"bool"},
     {"name":"isRepaid","type":"bool"},
     {"name":"status","type":"uint8"},
     {"name":"sourceChainId","type":"uint256"}]}]},
  {"type":"function","name":"getUserLoans","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"calculateTotalOwed","stateMutability":"view",
   "inputs":[{"name":"loanId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"LoanCreated","anonymous":false,
   "inputs":[{"name":"loanId","type":"uint256","indexed":true},{"name":"borrower","type":"address","indexed":true},{"name":"ipAsset","type":"address","indexed":true},{"name":"loanAmount","type":"uint256","indexed":false},{"name":"collateralValue","type":"uint256","indexed":false},{"name":"sourceChainId","type":"uint256","indexed":false}]}
]`

// ERC20ABI covers the token approval a repayment needs.
const ERC20ABI = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// IPAssetRegistryABI covers the registry lookup made before an asset
// is submitted for verification.
const IPAssetRegistryABI = `[
  {"type":"function","name":"isRegistered","stateMutability":"view",
   "inputs":[{"name":"id","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]}
]`
