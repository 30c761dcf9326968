package main

import (
	"context"

	"github.com/jmylchreest/eva-memory/pkg/session"
)

// cmdSyncStart implements `sync-start {sessionId?, project?, branch?}`.
func cmdSyncStart(app *App, a args) (any, error) {
	return app.Session.SyncStart(context.Background(), session.StartRequest{
		SessionID: a.str("sessionId"),
		Project:   a.str("project"),
		Branch:    a.str("branch"),
	})
}

// cmdSyncEnd implements `sync-end {summary?}`.
func cmdSyncEnd(app *App, a args) (any, error) {
	return app.Session.SyncEnd(session.EndRequest{Summary: a.str("summary")})
}

// cmdPreCompactionFlush implements `pre-compaction-flush {}`.
func cmdPreCompactionFlush(app *App, a args) (any, error) {
	return app.Session.PreCompactionFlush()
}
