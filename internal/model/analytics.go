package model

// AnalyticsRecord holds per-request statistics. It must never carry message
// text, only lengths and flags.
type AnalyticsRecord struct {
	SessionID      string `json:"session_id" dynamodbav:"session_id"`
	MessageID      string `json:"message_id" dynamodbav:"message_id"`
	Timestamp      string `json:"timestamp" dynamodbav:"timestamp"`
	QueryLength    int    `json:"query_length" dynamodbav:"query_length"`
	ResponseLength int    `json:"response_length" dynamodbav:"response_length"`
	ContextUsed    bool   `json:"context_used" dynamodbav:"context_used"`
	ContextLength  int    `json:"context_length" dynamodbav:"context_length"`
	TTL            int64  `json:"ttl" dynamodbav:"ttl"`
}
