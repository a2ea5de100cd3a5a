package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidOrder         ErrorCode = 103
	ErrCodeMissingLimitPrice    ErrorCode = 104
	ErrCodeMissingStopPrice     ErrorCode = 105
	ErrCodeInvalidQuantity      ErrorCode = 106
	ErrCodeUnknownSlippageModel ErrorCode = 107
	ErrCodeUnknownFeeModel      ErrorCode = 108

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound ErrorCode = 200
	ErrCodeQueryFailed  ErrorCode = 201
	ErrCodeBadBarData   ErrorCode = 202
	ErrCodeExportFailed ErrorCode = 203

	// Trading errors (500-599)
	ErrCodeOrderNotFound    ErrorCode = 500
	ErrCodeOrderTerminal    ErrorCode = 501
	ErrCodePositionNotFound ErrorCode = 502

	// Engine/state errors (600-699)
	ErrCodeStateNil           ErrorCode = 600
	ErrCodeInitFailed         ErrorCode = 601
	ErrCodeInvariantViolation ErrorCode = 602
	ErrCodeNonMonotonicBar    ErrorCode = 603
	ErrCodeLedgerWriteFailed  ErrorCode = 604
)
