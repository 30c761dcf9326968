package main

import "context"

// cmdDrainQueue implements `drain-queue {}`.
func cmdDrainQueue(app *App, a args) (any, error) {
	if app.Embedder == nil || app.Vector == nil {
		return map[string]any{"processed": 0, "remaining": 0, "status": "empty"}, nil
	}
	return app.Queue.Drain(context.Background(), app.Embedder, app.Vector)
}
