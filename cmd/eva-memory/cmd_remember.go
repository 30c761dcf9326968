package main

import (
	"context"

	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/orchestrator"
)

// cmdRemember implements `remember {content, type?, importance?=5, project?,
// tags?=[], summary?, entities?, confidence?=0.8, decayDays?, supersedes?,
// source?, sourceChannel?, sourceMessageId?}`.
func cmdRemember(app *App, a args) (any, error) {
	content := a.str("content")
	if content == "" {
		return nil, model.ErrMissingContent
	}

	sessionID := ""
	if rec, err := app.State.Load(); err == nil {
		sessionID = rec.Session.ID
	}

	req := orchestrator.Request{
		Content:         content,
		Type:            a.str("type"),
		Importance:      a.intDefault("importance", 5),
		Project:         a.str("project"),
		Tags:            a.strSlice("tags"),
		Summary:         a.str("summary"),
		Entities:        a.strSlice("entities"),
		Confidence:      a.floatDefault("confidence", 0.8),
		DecayDays:       a.intPtr("decayDays"),
		Supersedes:      a.str("supersedes"),
		Source:          a.str("source"),
		SourceChannel:   a.str("sourceChannel"),
		SourceMessageID: a.str("sourceMessageId"),
		SessionID:       sessionID,
		Structured:      a,
	}
	return app.Orchestrator.Remember(context.Background(), req)
}
