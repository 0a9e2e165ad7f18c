package domain

import "fmt"

// OwnerType 定义了市场中四个相互独立的货主分区。
// 每个分区维护自己的库存目录和请求队列，互不可见。
type OwnerType string

const (
	OwnerProducer  OwnerType = "producer"  // 生产方（原 farmer）
	OwnerWarehouse OwnerType = "warehouse" // 仓储方
	OwnerCarrier   OwnerType = "carrier"   // 运输方（原 logistic）
	OwnerReseller  OwnerType = "reseller"  // 零售方（原 retailer）
)

// AllOwnerTypes 按固定顺序列出全部分区类型。
func AllOwnerTypes() []OwnerType {
	return []OwnerType{OwnerProducer, OwnerWarehouse, OwnerCarrier, OwnerReseller}
}

// ParseOwnerType 将外部输入解析为 OwnerType。
// 未知的分区名返回 ErrUnknownOwnerType。
func ParseOwnerType(s string) (OwnerType, error) {
	switch OwnerType(s) {
	case OwnerProducer, OwnerWarehouse, OwnerCarrier, OwnerReseller:
		return OwnerType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOwnerType, s)
	}
}

// PartitionKey 唯一确定一个货主分区实例。
// 所有读写和订阅都以它为作用域；协调器逻辑只以它为参数，
// 四个分区共享同一份实现。
type PartitionKey struct {
	OwnerType OwnerType `json:"ownerType"`
	OwnerID   string    `json:"ownerId"`
}

// Validate 校验分区键本身的合法性。
func (k PartitionKey) Validate() error {
	if _, err := ParseOwnerType(string(k.OwnerType)); err != nil {
		return err
	}
	if k.OwnerID == "" {
		return fmt.Errorf("%w: owner id is empty", ErrValidation)
	}
	return nil
}

// String 输出 "ownerType/ownerID" 形式，用于日志和消息 Key。
func (k PartitionKey) String() string {
	return string(k.OwnerType) + "/" + k.OwnerID
}
