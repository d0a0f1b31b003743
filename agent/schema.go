package agent

// NormalizeSchemaForProvider collapses anyOf unions and strips
// $schema keys per spec §4.2.2, except for providers known to accept
// the original anyOf form natively (anthropic).
//
// Two anyOf shapes are recognized:
//   - a nullable union: exactly one non-null variant plus a "null"
//     type variant -> {"type": <nonNullType>, "nullable": true}
//   - a multi-type union with no null variant -> {"type": [t1, t2, ...]}
//
// Any anyOf shape that doesn't match one of those (mixed object
// shapes, refs, etc.) is left untouched, since collapsing it would
// lose information no provider needs recovered.
func NormalizeSchemaForProvider(schema map[string]any, provider string) map[string]any {
	if provider == "anthropic" {
		return schema
	}
	return normalizeNode(schema)
}

func normalizeNode(node map[string]any) map[string]any {
	if node == nil {
		return nil
	}
	out := make(map[string]any, len(node))
	for k, v := range node {
		if k == "$schema" {
			continue
		}
		out[k] = v
	}

	if anyOf, ok := out["anyOf"].([]any); ok {
		if flattened, ok := tryFlattenAnyOf(anyOf); ok {
			delete(out, "anyOf")
			for k, v := range flattened {
				out[k] = v
			}
		}
	}

	if props, ok := out["properties"].(map[string]any); ok {
		normalizedProps := make(map[string]any, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				normalizedProps[name] = normalizeNode(pm)
			} else {
				normalizedProps[name] = p
			}
		}
		out["properties"] = normalizedProps
	}

	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = normalizeNode(items)
	}

	return out
}

func tryFlattenAnyOf(variants []any) (map[string]any, bool) {
	var types []string
	hasNull := false
	for _, v := range variants {
		vm, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		t, ok := vm["type"].(string)
		if !ok || len(vm) != 1 {
			return nil, false // only simple {"type": "..."} variants are flattenable
		}
		if t == "null" {
			hasNull = true
			continue
		}
		types = append(types, t)
	}

	switch {
	case hasNull && len(types) == 1:
		return map[string]any{"type": types[0], "nullable": true}, true
	case !hasNull && len(types) > 1:
		anyTypes := make([]any, len(types))
		for i, t := range types {
			anyTypes[i] = t
		}
		return map[string]any{"type": anyTypes}, true
	default:
		return nil, false
	}
}
