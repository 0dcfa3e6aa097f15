package domain

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return true
	}
	return false
}

type WalletRole string

const (
	RoleIssuer     WalletRole = "ISSUER"
	RoleTreasury   WalletRole = "TREASURY"
	RoleOps        WalletRole = "OPS"
	RoleCompliance WalletRole = "COMPLIANCE"
	RoleViewer     WalletRole = "VIEWER"
)

func (r WalletRole) Valid() bool {
	switch r {
	case RoleIssuer, RoleTreasury, RoleOps, RoleCompliance, RoleViewer:
		return true
	}
	return false
}

type TxType string

const (
	TxPayment              TxType = "Payment"
	TxEscrowCreate         TxType = "EscrowCreate"
	TxEscrowFinish         TxType = "EscrowFinish"
	TxEscrowCancel         TxType = "EscrowCancel"
	TxCheckCreate          TxType = "CheckCreate"
	TxCheckCash            TxType = "CheckCash"
	TxPaymentChannelCreate TxType = "PaymentChannelCreate"
	TxAMMDeposit           TxType = "AMMDeposit"
	TxTrustSet             TxType = "TrustSet"
	TxSignerListSet        TxType = "SignerListSet"
	TxTokenMint            TxType = "TokenMint"
	TxTokenBurn            TxType = "TokenBurn"
	TxClawback             TxType = "Clawback"
	TxAccountSet           TxType = "AccountSet"
	TxOfferCreate          TxType = "OfferCreate"
)

func (t TxType) Valid() bool {
	switch t {
	case TxPayment, TxEscrowCreate, TxEscrowFinish, TxEscrowCancel,
		TxCheckCreate, TxCheckCash, TxPaymentChannelCreate, TxAMMDeposit,
		TxTrustSet, TxSignerListSet, TxTokenMint, TxTokenBurn,
		TxClawback, TxAccountSet, TxOfferCreate:
		return true
	}
	return false
}

type ActionType string

const (
	ActionWalletCreate     ActionType = "WALLET_CREATE"
	ActionWalletDisable    ActionType = "WALLET_DISABLE"
	ActionTokenIssue       ActionType = "TOKEN_ISSUE"
	ActionTokenMint        ActionType = "TOKEN_MINT"
	ActionTokenBurn        ActionType = "TOKEN_BURN"
	ActionTokenFreeze      ActionType = "TOKEN_FREEZE"
	ActionTokenClawback    ActionType = "TOKEN_CLAWBACK"
	ActionEscrowCreate     ActionType = "ESCROW_CREATE"
	ActionEscrowFinish     ActionType = "ESCROW_FINISH"
	ActionEscrowCancel     ActionType = "ESCROW_CANCEL"
	ActionTransfer         ActionType = "TRANSFER"
	ActionSignerListUpdate ActionType = "SIGNER_LIST_UPDATE"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionWalletCreate, ActionWalletDisable, ActionTokenIssue,
		ActionTokenMint, ActionTokenBurn, ActionTokenFreeze,
		ActionTokenClawback, ActionEscrowCreate, ActionEscrowFinish,
		ActionEscrowCancel, ActionTransfer, ActionSignerListUpdate:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusExpired   RequestStatus = "EXPIRED"
	StatusExecuted  RequestStatus = "EXECUTED"
	StatusCancelled RequestStatus = "CANCELLED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired, StatusExecuted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusExecuted, StatusCancelled:
		return true
	}
	return false
}
