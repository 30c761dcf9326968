package main

// cmdInstructions implements `instructions {project?}`.
func cmdInstructions(app *App, a args) (any, error) {
	instructions, err := app.Graph.GetInstructions(a.str("project"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"instructions": instructions}, nil
}
