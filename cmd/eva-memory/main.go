// Package main is the eva-memory CLI: argv[1] names a command, argv[2] is
// a JSON object, the result is a single JSON object on stdout. Dispatch
// runs through a plain switch keyed on the command name, one file per
// command.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jmylchreest/eva-memory/internal/version"
)

var warnLog = log.New(os.Stderr, "[eva-memory WARN] ", 0)

func main() {
	// Package-level log.Printf warnings (orchestrator, search, store) share
	// the CLI's stderr prefix.
	log.SetPrefix("[eva-memory WARN] ")
	log.SetFlags(0)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Println(version.String())
		return
	}
	if !isKnownCommand(cmd) {
		fmt.Fprintf(os.Stderr, "[eva-memory WARN] unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	var a args
	if len(os.Args) >= 3 {
		if err := json.Unmarshal([]byte(os.Args[2]), &a); err != nil {
			warnLog.Printf("invalid JSON argument: %v", err)
			os.Exit(1)
		}
	}

	app, err := newApp()
	if err != nil {
		warnLog.Printf("failed to initialize: %v", err)
		os.Exit(1)
	}
	defer app.Close()

	result, err := dispatch(app, cmd, a)
	if err != nil {
		writeJSON(map[string]any{"error": err.Error()})
		return
	}
	writeJSON(result)
}

var knownCommands = map[string]bool{
	"remember": true, "search": true, "auto-recall": true, "sync-start": true,
	"sync-end": true, "pre-compaction-flush": true, "drain-queue": true,
	"recall": true, "forget": true, "update": true, "evolve": true,
	"summarize": true, "list": true, "instructions": true, "entities": true,
	"maintain": true,
}

func isKnownCommand(cmd string) bool { return knownCommands[cmd] }

func dispatch(app *App, cmd string, a args) (any, error) {
	switch cmd {
	case "remember":
		return cmdRemember(app, a)
	case "search":
		return cmdSearch(app, a)
	case "auto-recall":
		return cmdAutoRecall(app, a)
	case "sync-start":
		return cmdSyncStart(app, a)
	case "sync-end":
		return cmdSyncEnd(app, a)
	case "pre-compaction-flush":
		return cmdPreCompactionFlush(app, a)
	case "drain-queue":
		return cmdDrainQueue(app, a)
	case "recall":
		return cmdRecall(app, a)
	case "forget":
		return cmdForget(app, a)
	case "update", "evolve":
		return cmdUpdate(app, a)
	case "summarize":
		return cmdSummarize(app, a)
	case "list":
		return cmdList(app, a)
	case "instructions":
		return cmdInstructions(app, a)
	case "entities":
		return cmdEntities(app, a)
	case "maintain":
		return cmdMaintain(app, a)
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

func writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		warnLog.Printf("failed to marshal output: %v", err)
		fmt.Println(`{"error": "internal: failed to marshal output"}`)
		return
	}
	fmt.Println(string(data))
}

func printUsage() {
	fmt.Printf(`eva-memory %s - three-layer agent memory orchestrator

Usage:
  eva-memory <command> '<json-args>'

Commands:
  remember               Persist a new memory (markdown + graph + vector/queue)
  search                 Merged graph+vector search
  auto-recall            Graph-only recall of important memories + instructions
  sync-start             Begin a session: WAL replay, queue drain, overview
  sync-end               Close the current session
  pre-compaction-flush   Snapshot state and replay the WAL
  drain-queue            Attempt to drain the pending-embeddings queue
  recall                 Look up a memory by id, or a filtered recent list
  forget                 Soft-delete a memory by id or best fulltext match
  update | evolve        Mutate an existing memory's fields
  summarize              Group active memories by type
  list                   Bounded, sorted, paginated listing
  instructions           All active instruction memories
  entities               Top entities by mention count
  maintain               Prune old, low-importance memories
  version                Print version information
  help                   Show this message

`, version.String())
}
