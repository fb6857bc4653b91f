package httpapi

// Aliases exposing response shapes to the external test package.
type (
	StatementResponse  = statementResponse
	ListBlocksResponse = listBlocksResponse
	VerifyResponse     = verifyResponse
)
