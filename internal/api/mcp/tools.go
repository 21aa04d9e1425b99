package mcp

// buildToolsList returns the canonical list of MCP tool definitions.
//
// Descriptions double as prompts for the calling agent: they say when to
// reach for each tool, not just what it does, because the tool list is the
// only documentation the model ever sees.
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name: "add_message",
			Description: "Save conversation turns to the user's long-term memory. " +
				"Call this after every meaningful user/assistant exchange so future conversations can recall it — " +
				"preferences the user states, facts about their life or work, decisions made, tasks agreed on. " +
				"Always pass the unmodified first message of the current conversation as conversation_first_message; " +
				"it is how the conversation is identified across calls, so it must stay byte-identical within one conversation. " +
				"Messages without a chat_time get the current time automatically.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"conversation_first_message", "messages"},
				"properties": map[string]interface{}{
					"conversation_first_message": map[string]interface{}{
						"type":        "string",
						"description": "The exact first message of the current conversation (required). Used to derive the stable conversation ID — never paraphrase or truncate it.",
					},
					"messages": map[string]interface{}{
						"type":        "array",
						"description": "Conversation turns to store, oldest first (required).",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []string{"role", "content"},
							"properties": map[string]interface{}{
								"role":      map[string]interface{}{"type": "string", "description": "Who produced the turn: \"user\" or \"assistant\""},
								"content":   map[string]interface{}{"type": "string", "description": "The message text"},
								"chat_time": map[string]interface{}{"type": "string", "description": "Timestamp as \"YYYY-MM-DD HH:mm:ss.SSS\". Omit to use the current time."},
							},
						},
					},
				},
			},
		},
		{
			Name: "search_memory",
			Description: "Search the user's long-term memory for information relevant to a query. " +
				"Call this BEFORE answering anything that could depend on what the user told you in earlier conversations: " +
				"their preferences, prior decisions, personal facts, ongoing projects. " +
				"Phrase query as a direct question or topic (\"favourite editor\", \"deadline for the migration\"). " +
				"Pass the unmodified first message of the current conversation as conversation_first_message. " +
				"Returns up to memory_limit_number memories (default 6) ranked by relevance.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query", "conversation_first_message"},
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "What to look for in stored memories (required)",
					},
					"conversation_first_message": map[string]interface{}{
						"type":        "string",
						"description": "The exact first message of the current conversation (required)",
					},
					"memory_limit_number": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of memories to return. Omit or pass 0 for the default of 6.",
					},
				},
			},
		},
		{
			Name: "get_message",
			Description: "Retrieve the stored message history of the current conversation. " +
				"Use this to rebuild context after a restart or to check which turns were already saved with add_message. " +
				"Pass the unmodified first message of the current conversation as conversation_first_message.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"conversation_first_message"},
				"properties": map[string]interface{}{
					"conversation_first_message": map[string]interface{}{
						"type":        "string",
						"description": "The exact first message of the current conversation (required)",
					},
				},
			},
		},
		{
			Name: "delete_memory",
			Description: "Permanently delete memories by ID. " +
				"Use this only when the user explicitly asks to forget something, and only with IDs returned by search_memory. " +
				"Deletion is scoped to the user, not to one conversation. " +
				"Do not delete-and-re-add to rewrite a memory — use add_feedback to correct stored information instead.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"memory_ids"},
				"properties": map[string]interface{}{
					"memory_ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "IDs of the memories to delete (required, at least one)",
					},
				},
			},
		},
		{
			Name: "add_feedback",
			Description: "Record the user's feedback about remembered information: corrections " +
				"(\"I moved teams, that's outdated\"), confirmations, or notes on how memories should be used. " +
				"The feedback is applied on the memory side; this call sends it exactly once and does not wait for or verify the outcome. " +
				"Pass the unmodified first message of the current conversation as conversation_first_message.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"conversation_first_message", "feedback_content"},
				"properties": map[string]interface{}{
					"conversation_first_message": map[string]interface{}{
						"type":        "string",
						"description": "The exact first message of the current conversation (required)",
					},
					"feedback_content": map[string]interface{}{
						"type":        "string",
						"description": "The feedback text (required)",
					},
					"agent_id": map[string]interface{}{
						"type":        "string",
						"description": "Agent the feedback concerns",
					},
					"app_id": map[string]interface{}{
						"type":        "string",
						"description": "Application the feedback concerns",
					},
					"feedback_time": map[string]interface{}{
						"type":        "string",
						"description": "Timestamp as \"YYYY-MM-DD HH:mm:ss.SSS\". Omit to use the current time.",
					},
					"allow_public": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether this feedback may be shared beyond the user's private memory (default: false)",
					},
					"allow_knowledgebase_ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Knowledge bases allowed to ingest this feedback",
					},
				},
			},
		},
	}
}
