package prompts

func StringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func IntSchema() map[string]any {
	return map[string]any{"type": "integer"}
}

func EnumSchema(values ...string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "string", "enum": arr}
}

func object(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func StepSchema() map[string]any {
	return object(map[string]any{
		"type":         EnumSchema("explanation", "key_point", "question", "example", "summary", "formula", "tip", "diagram"),
		"title":        map[string]any{"type": "string"},
		"content":      map[string]any{"type": "string"},
		"question":     map[string]any{"type": "string"},
		"options":      StringArraySchema(),
		"correctIndex": IntSchema(),
		"explanation":  map[string]any{"type": "string"},
	}, "type")
}

func LessonSchema() map[string]any {
	return object(map[string]any{
		"index":       IntSchema(),
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"topics":      StringArraySchema(),
		"steps":       map[string]any{"type": "array", "items": StepSchema()},
	}, "title", "steps")
}

func OutlineEntrySchema() map[string]any {
	return object(map[string]any{
		"index":       IntSchema(),
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"topics":      StringArraySchema(),
	}, "index", "title", "description", "topics")
}

func CourseSchema() map[string]any {
	return object(map[string]any{
		"title":    map[string]any{"type": "string"},
		"overview": map[string]any{"type": "string"},
		"lessons":  map[string]any{"type": "array", "items": LessonSchema()},
	}, "title", "overview", "lessons")
}

func ProgressiveInitialSchema() map[string]any {
	s := CourseSchema()
	props := s["properties"].(map[string]any)
	props["lessonOutline"] = map[string]any{"type": "array", "items": OutlineEntrySchema()}
	props["documentSummary"] = map[string]any{"type": "string"}
	s["required"] = []string{"title", "overview", "lessonOutline", "lessons", "documentSummary"}
	return s
}

func LessonBatchSchema() map[string]any {
	return object(map[string]any{
		"lessons": map[string]any{"type": "array", "items": LessonSchema()},
	}, "lessons")
}
