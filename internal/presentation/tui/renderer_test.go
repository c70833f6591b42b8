package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

func TestTodoMarkdown(t *testing.T) {
	todo := &domain.TodoList{Items: []*domain.TodoItem{
		{Content: "创建评测任务", Status: domain.ItemCompleted},
		{Content: "运行评测任务", Status: domain.ItemWaiting},
		{Content: "清理临时数据", Status: domain.ItemSkipped, SkipReason: "用户不同意"},
	}}

	md := TodoMarkdown("创建并运行评测任务", todo)
	assert.Contains(t, md, "## 创建并运行评测任务")
	assert.Contains(t, md, "- [x] 创建评测任务")
	assert.Contains(t, md, "- [?] 运行评测任务")
	assert.Contains(t, md, "- [-] 清理临时数据 _(skipped: 用户不同意)_")
}

func TestTodoMarkdown_EmptyPlan(t *testing.T) {
	md := TodoMarkdown("g", nil)
	assert.Contains(t, md, "_no plan yet_")
}

func TestCheckpointMarkdown(t *testing.T) {
	cp := &domain.Checkpoint{
		ID:     "cp-1",
		ItemID: "step-2",
		Reason: "即将删除数据集",
		Options: []domain.CheckpointOption{
			{ID: "d-1", Label: "训练集"},
			{ID: "d-2", Label: "训练集-备份"},
		},
	}

	md := CheckpointMarkdown(cp)
	assert.Contains(t, md, "等待确认")
	assert.Contains(t, md, "即将删除数据集")
	assert.Contains(t, md, "1. 训练集")
	assert.Contains(t, md, "2. 训练集-备份")

	assert.Empty(t, CheckpointMarkdown(nil))
}
