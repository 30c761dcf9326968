package main

// cmdEntities implements `entities {limit?=50}`.
func cmdEntities(app *App, a args) (any, error) {
	entities, err := app.Graph.ListEntities(a.intDefault("limit", 50))
	if err != nil {
		return nil, err
	}
	return map[string]any{"entities": entities}, nil
}
