// Package llm bridges the tool invocation broker to an Anthropic model.
//
// It defines the envelope types for tool calling (ToolDef, ToolCall,
// ToolResult) and a Session that drives the tool-use loop: the model is
// shown every tool in the broker's registry, its tool_use blocks are
// routed through broker.Invoke with the tool call ID as the correlation
// id, and the resulting payloads or error kinds flow back as tool_result
// blocks until the model produces a final text answer.
//
// # Usage
//
//	session, err := llm.NewSession(apiKey, b,
//	    llm.WithSystemPrompt("You are a weather assistant."),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	answer, err := session.Run(ctx, "Any weather alerts in NY right now?")
package llm
