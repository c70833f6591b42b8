package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
)

func testContext() intent.Context {
	return intent.Context{
		Page: "/tasks",
		Resources: []intent.Resource{
			{ID: "t-1", Type: "task", Name: "nightly-eval"},
			{ID: "t-2", Type: "task", Name: "nightly-eval-v2"},
			{ID: "d-1", Type: "dataset", Name: "训练集"},
			{ID: "p-1", Type: "prompt", Name: "summarize-v3"},
		},
	}
}

func TestRecognizeCategory(t *testing.T) {
	cases := []struct {
		text string
		want domain.IntentCategory
	}{
		{"创建一个测试任务", domain.IntentCreate},
		{"删除这个数据集", domain.IntentDelete},
		{"run the nightly eval", domain.IntentExecute},
		{"查看所有模型", domain.IntentQuery},
		{"重命名提示词", domain.IntentUpdate},
		{"打开评估器页面", domain.IntentNavigate},
		{"hmm not sure", domain.IntentUnknown},
	}
	for _, tc := range cases {
		got, _ := intent.RecognizeCategory(tc.text)
		assert.Equal(t, tc.want, got, "text=%q", tc.text)
	}
}

func TestRecognize_ChineseCreateTask(t *testing.T) {
	entities := intent.Recognize("创建一个测试任务", testContext())

	var action, resourceType *domain.EntityMatch
	for i := range entities {
		switch entities[i].Type {
		case domain.EntityAction:
			action = &entities[i]
		case domain.EntityResourceType:
			resourceType = &entities[i]
		}
	}
	require.NotNil(t, action)
	require.NotNil(t, resourceType)
	assert.Equal(t, "task", resourceType.ResourceType)
}

func TestRecognize_ExactMentionBeatsFuzzy(t *testing.T) {
	entities := intent.Recognize(`run "nightly-eval"`, testContext())

	var names []domain.EntityMatch
	for _, e := range entities {
		if e.Type == domain.EntityResourceName {
			names = append(names, e)
		}
	}
	require.Len(t, names, 1, "exact containment should suppress fuzzy candidates")
	assert.Equal(t, "nightly-eval", names[0].Value)
	assert.Equal(t, "t-1", names[0].ResourceID)
	assert.Equal(t, 1.0, names[0].Confidence)
}

func TestRecognize_FuzzyQuotedFragment(t *testing.T) {
	entities := intent.Recognize(`运行 "summarize" 这个提示词`, testContext())

	var name *domain.EntityMatch
	for i := range entities {
		if entities[i].Type == domain.EntityResourceName {
			name = &entities[i]
			break
		}
	}
	require.NotNil(t, name)
	assert.Equal(t, "summarize-v3", name.Value)
	assert.Less(t, name.Confidence, 1.0, "fuzzy resolution is never certain")
}

func TestRecognize_Parameters(t *testing.T) {
	entities := intent.Recognize("update task timeout=30", testContext())

	var params []string
	for _, e := range entities {
		if e.Type == domain.EntityParameter {
			params = append(params, e.Value)
		}
	}
	assert.Equal(t, []string{"timeout=30"}, params)
}

func TestRecognize_TypeScopesNameCandidates(t *testing.T) {
	// "训练集" is a dataset; asking about tasks must not resolve to it.
	entities := intent.Recognize(`删除任务 "训练集"`, testContext())
	for _, e := range entities {
		if e.Type == domain.EntityResourceName {
			assert.NotEqual(t, "训练集", e.Value)
		}
	}
}
