package domain

import "time"

// DecisionOutcome 是账本记录的裁决结果。
type DecisionOutcome string

const (
	OutcomeApproved DecisionOutcome = "approved"
	OutcomeRejected DecisionOutcome = "rejected"
)

// DecisionRecord 是决策账本中的一条不可变记录。
// 每个被裁决的请求恰好对应一条，pending 请求没有记录。
// QuantitySnapshot 保存裁决时点（扣减前）的可用库存，用于审计。
type DecisionRecord struct {
	RequestID        string
	Owner            PartitionKey
	Outcome          DecisionOutcome
	QuantitySnapshot int64
	ProcessedAt      time.Time
}

// NewDecisionRecord 按请求终态生成对应的账本记录。
func NewDecisionRecord(r *Request, snapshot int64) *DecisionRecord {
	outcome := OutcomeRejected
	if r.Status == StatusApproved {
		outcome = OutcomeApproved
	}
	return &DecisionRecord{
		RequestID:        r.ID,
		Owner:            r.Owner,
		Outcome:          outcome,
		QuantitySnapshot: snapshot,
		ProcessedAt:      r.ProcessedAt,
	}
}
