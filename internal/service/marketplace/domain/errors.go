package domain

import "errors"

// 领域错误分类。调用方通过 errors.Is 判断错误种类；
// 其中只有 ErrContention 适合带新快照自动重试，其余要么是
// 输入问题，要么是合法的终态，不应盲目重试。
var (
	// ErrValidation 表示数量非法（非正数或无法解析）等输入问题。
	ErrValidation = errors.New("validation failed")

	// ErrNotFound 表示目标库存项或请求不存在。
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed 表示请求已离开 pending 状态，决策是终态。
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrInsufficientStock 表示提交时点的可用库存小于请求数量。
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrContention 表示乐观并发提交时快照已过期，事务被整体放弃，
	// 没有任何部分写入。调用方可以带新读取重试。
	ErrContention = errors.New("optimistic commit conflict")

	// ErrDuplicateDecision 表示账本中已存在该请求的决策记录。
	ErrDuplicateDecision = errors.New("decision already recorded")

	// ErrUnknownOwnerType 表示分区类型不在四个固定命名空间内。
	ErrUnknownOwnerType = errors.New("unknown owner type")
)
