package main

// args is the decoded argv[2] JSON object every command receives.
type args map[string]any

func (a args) str(key string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (a args) strDefault(key, def string) string {
	if s := a.str(key); s != "" {
		return s
	}
	return def
}

func (a args) intDefault(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

func (a args) intPtr(key string) *int {
	v, ok := a[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func (a args) floatDefault(key string, def float64) float64 {
	v, ok := a[key]
	if !ok {
		return def
	}
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

// strOpt returns the value and true when key is present and a string.
func (a args) strOpt(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (a args) strSlice(key string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a args) raw(key string) map[string]any {
	v, ok := a[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}
