package chainadapter

// htlcABIJSON is a hand-authored ABI covering both dialects this adapter
// knows how to speak against: the mapping-getter shape (`contracts`, the
// Solidity default-getter for a public mapping) and the explicit-accessor
// shape (`getDetails`). Both return the same seven-field tuple; only the
// function name and selector differ. A real deployment exposes exactly one
// of the two read functions, never both.
const htlcABIJSON = `[
	{
		"type": "function",
		"name": "lock",
		"stateMutability": "payable",
		"inputs": [
			{"name": "lockId", "type": "bytes32"},
			{"name": "token", "type": "address"},
			{"name": "beneficiary", "type": "address"},
			{"name": "hashLock", "type": "bytes32"},
			{"name": "timelock", "type": "uint256"},
			{"name": "value", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "claim",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "lockId", "type": "bytes32"},
			{"name": "preimage", "type": "bytes32"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "refund",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "lockId", "type": "bytes32"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "contracts",
		"stateMutability": "view",
		"inputs": [{"name": "lockId", "type": "bytes32"}],
		"outputs": [
			{"name": "token", "type": "address"},
			{"name": "beneficiary", "type": "address"},
			{"name": "originator", "type": "address"},
			{"name": "hashLock", "type": "bytes32"},
			{"name": "timelock", "type": "uint256"},
			{"name": "value", "type": "uint256"},
			{"name": "state", "type": "uint8"}
		]
	},
	{
		"type": "function",
		"name": "getDetails",
		"stateMutability": "view",
		"inputs": [{"name": "lockId", "type": "bytes32"}],
		"outputs": [
			{"name": "token", "type": "address"},
			{"name": "beneficiary", "type": "address"},
			{"name": "originator", "type": "address"},
			{"name": "hashLock", "type": "bytes32"},
			{"name": "timelock", "type": "uint256"},
			{"name": "value", "type": "uint256"},
			{"name": "state", "type": "uint8"}
		]
	},
	{
		"type": "event",
		"name": "Locked",
		"anonymous": false,
		"inputs": [
			{"name": "lockId", "type": "bytes32", "indexed": true},
			{"name": "hashLock", "type": "bytes32", "indexed": true},
			{"name": "originator", "type": "address", "indexed": false},
			{"name": "beneficiary", "type": "address", "indexed": false},
			{"name": "token", "type": "address", "indexed": false},
			{"name": "value", "type": "uint256", "indexed": false},
			{"name": "timelock", "type": "uint256", "indexed": false}
		]
	}
]`

// erc20ABIJSON covers only the calls the adapter needs against a token
// contract: reading and raising an allowance before escrowing ERC-20 value.
const erc20ABIJSON = `[
	{
		"type": "function",
		"name": "allowance",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "approve",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "value", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [{"name": "account", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	}
]`
