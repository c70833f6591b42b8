/*
Package goi is a goal-oriented interaction engine for prompt
engineering tools. It turns a natural-language goal into an ordered
todo list, executes it step by step, and suspends at checkpoints where
a human must approve, reject, or redirect before work continues.

# Concept

The engine runs an agent loop per session: planning decomposes the
goal, execution drives items one at a time, and a rule engine decides
which steps open checkpoints. Control shifts explicitly between the AI
and the user; every transition is published as an event and every
mutation is snapshotted, so a session survives process restart and can
be resumed from any surface.

Free-text commands go through an intent pipeline: rule-based parsing
with an optional model fallback, confidence scoring, and a bounded
clarification dialog when the utterance is ambiguous.

# Usage

Assemble an App and drive sessions through the Manager:

	package main

	import (
		"context"
		"log"

		goi "github.com/Jamplesmise/prompt-tool-sub006"
		"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
	)

	func main() {
		app, err := goi.New()
		if err != nil {
			log.Fatal(err)
		}
		defer app.Close()

		ctx := context.Background()
		sess, err := app.Manager.Create(ctx, "demo", "assisted")
		if err != nil {
			log.Fatal(err)
		}

		result := sess.Start(ctx, "创建一个测试任务", nil)
		if result.Checkpoint != nil {
			// Surface the checkpoint to the user, then:
			sess.Approve(ctx, session.ApproveRequest{ID: result.Checkpoint.ID})
		}
	}

The serving surfaces in internal/adapters/http and pkg/adapters/mcp
expose the same Manager over REST/SSE and the Model Context Protocol.
*/
package goi
