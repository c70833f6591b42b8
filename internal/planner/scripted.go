package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// Scripted is a deterministic planner for demos and local runs. It maps
// the parsed intent category (carried in the plan request context) to a
// canned step sequence, so the engine can be exercised without a model.
type Scripted struct{}

// NewScripted creates a scripted planner.
func NewScripted() *Scripted { return &Scripted{} }

// Plan implements ports.Planner.
func (s *Scripted) Plan(_ context.Context, req ports.PlanRequest) (*ports.Plan, error) {
	category, _ := req.Context["category"].(string)
	resourceType, _ := req.Context["resource_type"].(string)
	resourceName, _ := req.Context["resource_name"].(string)
	if resourceType == "" {
		resourceType = "task"
	}
	if resourceName == "" {
		resourceName = deriveName(req.Goal)
	}

	var items []*domain.TodoItem
	switch category {
	case string(domain.IntentDelete):
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("确认 %s %q 当前未被引用", resourceType, resourceName),
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
			step(2, fmt.Sprintf("删除 %s %q", resourceType, resourceName),
				domain.ActionDelete, resourceType, resourceName, domain.RiskHigh, true),
		}
	case string(domain.IntentExecute):
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("检查 %s %q 的运行前置条件", resourceType, resourceName),
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
			step(2, fmt.Sprintf("运行 %s %q", resourceType, resourceName),
				domain.ActionExecute, resourceType, resourceName, domain.RiskMedium, true),
			step(3, "汇总运行结果",
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
		}
	case string(domain.IntentQuery):
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("查询 %s %q", resourceType, resourceName),
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
		}
	case string(domain.IntentUpdate):
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("读取 %s %q 的当前配置", resourceType, resourceName),
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
			step(2, fmt.Sprintf("更新 %s %q", resourceType, resourceName),
				domain.ActionUpdate, resourceType, resourceName, domain.RiskMedium, true),
		}
	case string(domain.IntentNavigate):
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("打开 %s %q", resourceType, resourceName),
				domain.ActionNavigate, resourceType, resourceName, domain.RiskLow, false),
		}
	default:
		items = []*domain.TodoItem{
			step(1, fmt.Sprintf("创建 %s %q", resourceType, resourceName),
				domain.ActionCreate, resourceType, resourceName, domain.RiskLow, true),
			step(2, fmt.Sprintf("校验 %s %q 已就绪", resourceType, resourceName),
				domain.ActionQuery, resourceType, resourceName, domain.RiskLow, false),
		}
	}

	return &ports.Plan{
		Items:    items,
		Analysis: fmt.Sprintf("scripted plan for %q", req.Goal),
	}, nil
}

func step(n int, content string, at domain.ActionType, rt, rn string, risk domain.RiskLevel, critical bool) *domain.TodoItem {
	return &domain.TodoItem{
		ID:      fmt.Sprintf("step-%d", n),
		Content: content,
		Status:  domain.ItemPending,
		Action: domain.ActionSpec{
			Type:         at,
			ResourceType: rt,
			ResourceName: rn,
			Params:       map[string]any{},
			Risk:         risk,
		},
		Critical: critical,
	}
}

func deriveName(goal string) string {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return "untitled"
	}
	fields := strings.Fields(goal)
	name := fields[len(fields)-1]
	name = strings.Trim(name, `"'“”`)
	if len([]rune(name)) > 24 {
		name = string([]rune(name)[:24])
	}
	return name
}
