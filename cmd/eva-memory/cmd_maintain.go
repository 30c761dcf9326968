package main

import "github.com/jmylchreest/eva-memory/pkg/maintain"

// cmdMaintain implements `maintain {maxAgeDays?=90, minImportance?=3}`.
func cmdMaintain(app *App, a args) (any, error) {
	return app.Maintain.Run(maintain.Request{
		MaxAgeDays:    a.intDefault("maxAgeDays", maintain.DefaultMaxAgeDays),
		MinImportance: a.intDefault("minImportance", maintain.DefaultMinImportance),
	})
}
