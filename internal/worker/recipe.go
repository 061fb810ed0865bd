package worker

import (
	"sort"
	"strings"

	"YoloPipeline/internal/entity"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	NoRecipeTitle   = "No recipe available"
	NoObjectSummary = "No objects were detected in the image."
	seasoning       = "salt and pepper, to taste"
)

// Transform turns detections into a templated recipe. Same input, same output.
func Transform(result entity.DetectionResult) entity.Recipe {
	meta := result.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	labels := distinctLabels(result)
	if len(labels) == 0 {
		return entity.Recipe{
			Detected:    false,
			Title:       NoRecipeTitle,
			Ingredients: []string{},
			Steps: []string{
				"No food items were detected in the image, so there is nothing to cook yet.",
				"Try another photo with the ingredients clearly in view.",
			},
			Summary:      NoObjectSummary,
			Labels:       []string{},
			OriginalMeta: meta,
		}
	}

	primary, supporting := labels[0], labels[1:]

	ingredients := make([]string, 0, len(labels)+1)
	ingredients = append(ingredients, primary+" (as the main ingredient)")
	ingredients = append(ingredients, supporting...)
	ingredients = append(ingredients, seasoning)

	steps := []string{"Wash and prepare the " + primary + "."}
	if len(supporting) > 0 {
		steps = append(steps, "Combine the "+primary+" with "+joinWords(supporting)+" in a large pan.")
	} else {
		steps = append(steps, "Cook the "+primary+" on its own over medium heat until tender.")
	}
	steps = append(steps,
		"Season with salt and pepper and adjust to taste.",
		"Plate and serve while warm.",
	)

	return entity.Recipe{
		Detected:     true,
		Title:        "Quick " + cases.Title(language.English).String(primary) + " Dish",
		Ingredients:  ingredients,
		Steps:        steps,
		Summary:      "The model detected: " + strings.Join(labels, ", ") + ".",
		Labels:       labels,
		OriginalMeta: meta,
	}
}

func distinctLabels(result entity.DetectionResult) []string {
	seen := make(map[string]struct{}, len(result.Detections))
	labels := make([]string, 0, len(result.Detections))
	for _, label := range result.Labels() {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
}
