// Package intent turns free-text human commands into structured,
// confidence-scored actions. Parsing is hybrid: a cheap deterministic
// rule path (alias tables plus fuzzy resource matching) runs first, and a
// model-backed path fills in when rules miss. Confidence evaluation maps
// the result to auto-execute, confirm, clarify or reject, and the
// clarification dialog handles the bounded question/answer rounds.
package intent

import (
	"regexp"
	"strings"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/fuzzy"
)

// Resource is one known, addressable resource used for name resolution.
type Resource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Context carries the UI situation an utterance was spoken in. Page and
// Selection feed the contextual confidence bonus; Resources is the index
// fuzzy name resolution runs against.
type Context struct {
	Page      string     `json:"page,omitempty"`
	Selection string     `json:"selection,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

// resourcesOf returns the known resources of one type, or all of them
// when typ is empty.
func (c Context) resourcesOf(typ string) []Resource {
	if typ == "" {
		return c.Resources
	}
	var out []Resource
	for _, r := range c.Resources {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// Alias tables for the prompt-tool resource vocabulary. Longest alias hit
// wins so "评测任务" resolves before "任务".
var resourceAliases = map[string][]string{
	"prompt":    {"prompt", "prompts", "提示词", "提示"},
	"dataset":   {"dataset", "datasets", "data set", "数据集"},
	"model":     {"model", "models", "模型"},
	"task":      {"task", "tasks", "评测任务", "测试任务", "任务"},
	"evaluator": {"evaluator", "evaluators", "评估器", "评估"},
}

var actionAliases = map[domain.IntentCategory][]string{
	domain.IntentCreate:   {"create", "new", "add", "make", "创建", "新建", "添加"},
	domain.IntentQuery:    {"show", "list", "view", "find", "search", "query", "查看", "查询", "搜索", "列出"},
	domain.IntentUpdate:   {"update", "edit", "modify", "rename", "change", "更新", "修改", "编辑", "重命名"},
	domain.IntentDelete:   {"delete", "remove", "drop", "删除", "移除", "清除"},
	domain.IntentExecute:  {"run", "execute", "launch", "rerun", "运行", "执行", "启动", "重跑"},
	domain.IntentNavigate: {"open", "go to", "goto", "navigate", "打开", "前往", "跳转"},
}

// Confidence weights per fuzzy strategy. An exact mention is certain; an
// edit-distance hit is only a hint.
var strategyWeight = map[fuzzy.Strategy]float64{
	fuzzy.StrategyExact:    1.0,
	fuzzy.StrategyPrefix:   0.9,
	fuzzy.StrategyContains: 0.85,
	fuzzy.StrategyInitials: 0.8,
	fuzzy.StrategyDistance: 0.75,
}

var quotedRe = regexp.MustCompile("[\"'`“”「」]([^\"'`“”「」]+)[\"'`“”「」]")

var paramRe = regexp.MustCompile(`([\p{L}\d_]+)\s*[=:：]\s*([\p{L}\d_./-]+)`)

// ambiguityWindow is the score gap under which two name candidates are
// considered equally strong.
const ambiguityWindow = 0.05

// RecognizeCategory finds the action category by alias containment.
// Longer aliases win; returns IntentUnknown on miss.
func RecognizeCategory(text string) (domain.IntentCategory, string) {
	lower := strings.ToLower(text)
	best := domain.IntentUnknown
	bestAlias := ""
	for cat, aliases := range actionAliases {
		for _, a := range aliases {
			if strings.Contains(lower, a) && len(a) > len(bestAlias) {
				best, bestAlias = cat, a
			}
		}
	}
	return best, bestAlias
}

// recognizeResourceType finds the resource type by alias containment.
func recognizeResourceType(text string) (string, string) {
	lower := strings.ToLower(text)
	bestType, bestAlias := "", ""
	for typ, aliases := range resourceAliases {
		for _, a := range aliases {
			if strings.Contains(lower, a) && len(a) > len(bestAlias) {
				bestType, bestAlias = typ, a
			}
		}
	}
	return bestType, bestAlias
}

// quotedStrings extracts quoted fragments in order of appearance.
func quotedStrings(text string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Recognize extracts action, resource type, resource name and parameter
// entities from the utterance. Name resolution uses exact mentions first,
// then fuzzy matching of quoted fragments against the resource index;
// near-ties surface as two entities so the evaluator can detect
// ambiguity.
func Recognize(text string, rctx Context) []domain.EntityMatch {
	var entities []domain.EntityMatch
	lower := strings.ToLower(text)

	category, alias := RecognizeCategory(text)
	if category != domain.IntentUnknown {
		entities = append(entities, domain.EntityMatch{
			Type:       domain.EntityAction,
			Value:      alias,
			Confidence: 0.95,
		})
	}

	resourceType, typeAlias := recognizeResourceType(text)
	if resourceType != "" {
		entities = append(entities, domain.EntityMatch{
			Type:         domain.EntityResourceType,
			ResourceType: resourceType,
			Value:        typeAlias,
			Confidence:   0.95,
		})
	}

	quoted := quotedStrings(text)
	entities = append(entities, recognizeNames(lower, quoted, resourceType, rctx)...)

	for _, m := range paramRe.FindAllStringSubmatch(text, -1) {
		entities = append(entities, domain.EntityMatch{
			Type:       domain.EntityParameter,
			Value:      m[1] + "=" + m[2],
			Confidence: 0.8,
		})
	}

	return entities
}

// recognizeNames resolves resource-name entities.
func recognizeNames(lower string, quoted []string, resourceType string, rctx Context) []domain.EntityMatch {
	candidates := rctx.resourcesOf(resourceType)
	if len(candidates) == 0 {
		return nil
	}

	byName := make(map[string]Resource, len(candidates))
	names := make([]string, 0, len(candidates))
	for _, r := range candidates {
		byName[strings.ToLower(r.Name)] = r
		names = append(names, r.Name)
	}

	// Exact mentions beat any fuzzy resolution.
	var mentions []domain.EntityMatch
	for lowerName, r := range byName {
		if lowerName != "" && strings.Contains(lower, lowerName) {
			mentions = append(mentions, domain.EntityMatch{
				Type:         domain.EntityResourceName,
				ResourceType: r.Type,
				ResourceID:   r.ID,
				Value:        r.Name,
				Confidence:   1.0,
			})
		}
	}
	if len(mentions) > 0 {
		return mentions
	}

	// Fuzzy-resolve quoted fragments. The top hit is kept; a near-tie
	// second hit is kept too so ambiguity is visible downstream.
	for _, q := range quoted {
		ranked := fuzzy.Rank(q, names, 0)
		if len(ranked) == 0 {
			continue
		}
		out := []domain.EntityMatch{nameEntity(ranked[0], byName)}
		if len(ranked) > 1 && ranked[0].Strategy == ranked[1].Strategy &&
			ranked[0].Score-ranked[1].Score <= ambiguityWindow {
			out = append(out, nameEntity(ranked[1], byName))
		}
		return out
	}
	return nil
}

func nameEntity(m fuzzy.Match, byName map[string]Resource) domain.EntityMatch {
	r := byName[strings.ToLower(m.Candidate)]
	return domain.EntityMatch{
		Type:         domain.EntityResourceName,
		ResourceType: r.Type,
		ResourceID:   r.ID,
		Value:        r.Name,
		Confidence:   strategyWeight[m.Strategy] * m.Score,
	}
}
