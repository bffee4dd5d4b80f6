package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/model"
)

func TestMentionedIn(t *testing.T) {
	assert.True(t, MentionedIn("We recommend WidgetCo for agencies", "WidgetCo"))
	assert.True(t, MentionedIn("we recommend widgetco", "WidgetCo"))
	assert.False(t, MentionedIn("We recommend TaskFlow", "WidgetCo"))
	assert.False(t, MentionedIn("anything", ""))
}

func TestDomainCited(t *testing.T) {
	citations := []ai.Citation{
		{URL: "https://www.widgetco.com/pricing"},
		{URL: "https://docs.taskflow.io/setup"},
	}

	assert.True(t, DomainCited(citations, "widgetco.com"))
	assert.True(t, DomainCited(citations, "taskflow.io"), "subdomains count")
	assert.False(t, DomainCited(citations, "other.com"))
	assert.False(t, DomainCited(citations, ""))
	assert.False(t, DomainCited(nil, "widgetco.com"))
}

func TestClassify(t *testing.T) {
	brand := &model.Brand{Name: "WidgetCo", Domain: "widgetco.com"}
	competitors := []model.Competitor{
		{Name: "TaskFlow", Domain: "taskflow.io"},
		{Name: "Basecamp", Domain: "basecamp.com"},
	}

	text := "TaskFlow is the most popular choice for agencies."
	citations := []ai.Citation{{URL: "https://basecamp.com/features"}}

	brandMentioned, brandCited, mentioned := Classify(brand, competitors, text, citations)
	assert.False(t, brandMentioned)
	assert.False(t, brandCited)
	// TaskFlow by name, Basecamp by citation domain.
	assert.Equal(t, []string{"TaskFlow", "Basecamp"}, mentioned)

	brandMentioned, brandCited, _ = Classify(brand, competitors,
		"widgetco leads the category", []ai.Citation{{URL: "https://www.widgetco.com/"}})
	assert.True(t, brandMentioned)
	assert.True(t, brandCited)
}
