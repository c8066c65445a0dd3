package tx

import "strings"

// Result is an engine result code as reported by the ledger.
type Result string

// Codes the orchestrator inspects or that the simulated ledger returns.
const (
	TesSUCCESS Result = "tesSUCCESS"

	TecCRYPTOCONDITION_ERROR Result = "tecCRYPTOCONDITION_ERROR"
	TecHAS_OBLIGATIONS       Result = "tecHAS_OBLIGATIONS"
	TecINSUFFICIENT_RESERVE  Result = "tecINSUFFICIENT_RESERVE"
	TecNO_DST                Result = "tecNO_DST"
	TecNO_PERMISSION         Result = "tecNO_PERMISSION"
	TecNO_TARGET             Result = "tecNO_TARGET"
	TecOBJECT_NOT_FOUND      Result = "tecOBJECT_NOT_FOUND"
	TecUNFUNDED              Result = "tecUNFUNDED"

	TefMAX_LEDGER Result = "tefMAX_LEDGER"
	TefPAST_SEQ   Result = "tefPAST_SEQ"

	TelINSUF_FEE_P Result = "telINSUF_FEE_P"

	TemBAD_AMOUNT       Result = "temBAD_AMOUNT"
	TemBAD_EXPIRATION   Result = "temBAD_EXPIRATION"
	TemBAD_FEE          Result = "temBAD_FEE"
	TemBAD_TRANSFER_FEE Result = "temBAD_TRANSFER_FEE"
	TemDST_NEEDED       Result = "temDST_NEEDED"
	TemINVALID_FLAG     Result = "temINVALID_FLAG"
	TemMALFORMED        Result = "temMALFORMED"

	TerPRE_SEQ Result = "terPRE_SEQ"
	TerQUEUED  Result = "terQUEUED"
)

func (r Result) String() string {
	return string(r)
}

// IsSuccess reports whether r is tesSUCCESS, the only success signal.
func (r Result) IsSuccess() bool {
	return r == TesSUCCESS
}

// IsTec reports a claimed-cost failure: applied, fee charged, no effect.
func (r Result) IsTec() bool {
	return strings.HasPrefix(string(r), "tec")
}

// IsTef reports a failure that will not succeed in this ledger chain.
func (r Result) IsTef() bool {
	return strings.HasPrefix(string(r), "tef")
}

// IsTel reports a local error at the receiving server.
func (r Result) IsTel() bool {
	return strings.HasPrefix(string(r), "tel")
}

// IsTem reports a malformed transaction.
func (r Result) IsTem() bool {
	return strings.HasPrefix(string(r), "tem")
}

// IsTer reports a retryable result.
func (r Result) IsTer() bool {
	return strings.HasPrefix(string(r), "ter")
}

// IsApplied reports whether the transaction made it into a ledger.
func (r Result) IsApplied() bool {
	return r.IsSuccess() || r.IsTec()
}

// IsProvisional reports whether a preliminary submit result still allows
// the transaction to be validated later.
func (r Result) IsProvisional() bool {
	return r.IsSuccess() || r.IsTec() || r.IsTer()
}

// Message returns a human-readable message for r.
func (r Result) Message() string {
	switch r {
	case TesSUCCESS:
		return "The transaction was applied. Only final in a validated ledger."
	case TecCRYPTOCONDITION_ERROR:
		return "Malformed or mismatched crypto-condition."
	case TecHAS_OBLIGATIONS:
		return "The issuance still has outstanding obligations."
	case TecINSUFFICIENT_RESERVE:
		return "Insufficient reserve to complete requested operation."
	case TecNO_DST:
		return "Destination account does not exist."
	case TecNO_PERMISSION:
		return "No permission to perform requested operation."
	case TecNO_TARGET:
		return "Target of the operation does not exist."
	case TecOBJECT_NOT_FOUND:
		return "A requested object could not be located."
	case TecUNFUNDED:
		return "Not enough XRP to satisfy the reserve requirement."
	case TefMAX_LEDGER:
		return "Ledger sequence too high."
	case TefPAST_SEQ:
		return "This sequence number has already passed."
	case TemBAD_EXPIRATION:
		return "Malformed: Bad expiration."
	case TemBAD_AMOUNT:
		return "Can only send positive amounts."
	case TemMALFORMED:
		return "Malformed transaction."
	case TerPRE_SEQ:
		return "Missing/inapplicable prior transaction."
	case TerQUEUED:
		return "Held until escalated fee drops."
	default:
		return string(r)
	}
}
