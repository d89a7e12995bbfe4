package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown     ErrorCode = 1
	ErrCodeUnsupported ErrorCode = 2

	// Configuration errors (100-199)
	ErrCodeCycle                ErrorCode = 100
	ErrCodeDuplicateNode        ErrorCode = 101
	ErrCodeUnknownNode          ErrorCode = 102
	ErrCodeDependencyViolation  ErrorCode = 103
	ErrCodeInvalidIntent        ErrorCode = 104
	ErrCodeInvalidConfiguration ErrorCode = 105
	ErrCodeIncompatibleVersion  ErrorCode = 106
	ErrCodeMissingParameter     ErrorCode = 107

	// Concurrency errors (200-299)
	ErrCodeConcurrentMutation ErrorCode = 200

	// Dispatch errors (400-499)
	ErrCodeDispatch      ErrorCode = 400
	ErrCodeStagePanicked ErrorCode = 401

	// Broker errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodeHandleNotFound      ErrorCode = 501
	ErrCodeInsufficientBalance ErrorCode = 502
	ErrCodeMarketDataMissing   ErrorCode = 503

	// Report errors (600-699)
	ErrCodeReportFailed ErrorCode = 600
	ErrCodeNoReportSink ErrorCode = 601

	// Market data errors (700-799)
	ErrCodeDataSourceUnavailable ErrorCode = 700
	ErrCodeQueryFailed           ErrorCode = 701
	ErrCodeNoDataFound           ErrorCode = 702
)
