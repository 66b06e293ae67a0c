package entity

import (
	"encoding/json"
	"time"
)

// 变更事件涉及的表名
const (
	TableTextbooks = "textbooks"
	TableChapters  = "chapters"
	TableSections  = "sections"
)

// ChangeOp 变更操作类型
type ChangeOp string

const (
	ChangeOpInsert ChangeOp = "INSERT"
	ChangeOpUpdate ChangeOp = "UPDATE"
)

// ChangeEvent 行级变更事件，生成过程中的每次落库都会发布一条，
// 供进度投影与增量装配消费
type ChangeEvent struct {
	TextbookID string          `json:"textbook_id"`
	Table      string          `json:"table"`
	Op         ChangeOp        `json:"op"`
	RowID      string          `json:"row_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
