package worker

import (
	"strings"
	"testing"

	"YoloPipeline/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(labels ...string) []entity.DetectionItem {
	out := make([]entity.DetectionItem, 0, len(labels))
	for _, l := range labels {
		out = append(out, entity.DetectionItem{Label: l})
	}
	return out
}

func TestTransform_NoDetections(t *testing.T) {
	recipe := Transform(entity.DetectionResult{Detections: []entity.DetectionItem{}})

	assert.False(t, recipe.Detected)
	assert.Equal(t, NoRecipeTitle, recipe.Title)
	assert.Empty(t, recipe.Ingredients)
	require.NotEmpty(t, recipe.Steps)
	assert.Contains(t, recipe.Steps[0], "No food items were detected")
	assert.Equal(t, NoObjectSummary, recipe.Summary)
	assert.Equal(t, map[string]any{}, recipe.OriginalMeta)
}

func TestTransform_PrimaryAndSupporting(t *testing.T) {
	meta := map[string]any{"imgsz": 640, "conf": 0.25}
	recipe := Transform(entity.DetectionResult{
		Detections: items("apple", "banana", "apple"),
		Meta:       meta,
	})

	assert.True(t, recipe.Detected)
	assert.Equal(t, "Quick Apple Dish", recipe.Title)
	assert.Equal(t, []string{"apple", "banana"}, recipe.Labels)
	require.NotEmpty(t, recipe.Ingredients)
	assert.Equal(t, "apple (as the main ingredient)", recipe.Ingredients[0])
	assert.Contains(t, strings.Join(recipe.Ingredients, " "), "banana")
	assert.GreaterOrEqual(t, len(recipe.Steps), 3)
	assert.Equal(t, "The model detected: apple, banana.", recipe.Summary)
	assert.Equal(t, meta, recipe.OriginalMeta)
}

func TestTransform_SingleLabelCooksAlone(t *testing.T) {
	recipe := Transform(entity.DetectionResult{Detections: items("hot dog")})

	assert.Equal(t, "Quick Hot Dog Dish", recipe.Title)
	assert.Equal(t, []string{"hot dog (as the main ingredient)", "salt and pepper, to taste"}, recipe.Ingredients)
	assert.Contains(t, recipe.Steps[1], "on its own")
	assert.GreaterOrEqual(t, len(recipe.Steps), 3)
}

func TestTransform_EnumeratesSupportingLabels(t *testing.T) {
	recipe := Transform(entity.DetectionResult{Detections: items("carrot", "broccoli", "orange")})

	assert.Equal(t, "Quick Broccoli Dish", recipe.Title)
	assert.Equal(t, "Combine the broccoli with carrot and orange in a large pan.", recipe.Steps[1])
}

func TestTransform_EmptyLabelUsesPlaceholder(t *testing.T) {
	recipe := Transform(entity.DetectionResult{Detections: items("")})

	assert.Equal(t, []string{entity.DefaultLabel}, recipe.Labels)
	assert.Equal(t, "Quick Object Dish", recipe.Title)
}

func TestTransform_IsDeterministic(t *testing.T) {
	in := entity.DetectionResult{Detections: items("zucchini", "apple", "milk", "apple")}
	assert.Equal(t, Transform(in), Transform(in))
}

func TestJoinWords(t *testing.T) {
	assert.Equal(t, "", joinWords(nil))
	assert.Equal(t, "a", joinWords([]string{"a"}))
	assert.Equal(t, "a and b", joinWords([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinWords([]string{"a", "b", "c"}))
}
