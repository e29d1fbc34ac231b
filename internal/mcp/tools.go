package mcp

func (s *Server) listTools() interface{} {
	return map[string]interface{}{
		"tools": []interface{}{
			map[string]interface{}{
				"name":        "run_simulation",
				"description": "Run a Monte-Carlo race simulation over a lineup CSV and return per-driver probabilities.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"csv":           map[string]interface{}{"type": "string", "description": "Lineup CSV including the required metric columns"},
						"track_profile": map[string]interface{}{"type": "string", "enum": []string{"balanced", "power", "technical"}},
						"weather":       map[string]interface{}{"type": "string", "enum": []string{"dry", "mixed", "wet"}},
						"tyre_stress":   map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high"}},
						"safety_car":    map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high"}},
						"runs":          map[string]interface{}{"type": "integer", "description": "Sample count, clamped to [500, 20000]"},
						"randomness":    map[string]interface{}{"type": "number", "description": "Noise level in [0, 1]"},
						"seed":          map[string]interface{}{"type": "integer", "description": "Optional seed for reproducible results"},
						"use_factors":   map[string]interface{}{"type": "boolean", "description": "Apply the current news-derived variation factors (default true)"},
						"wait":          map[string]interface{}{"type": "boolean", "description": "Block until the run finishes and return the summary (default true)"},
					},
					"required": []string{"csv"},
				},
			},
			map[string]interface{}{
				"name":        "simulation_status",
				"description": "Report the latest progress percent and the current run's lifecycle state.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "cancel_simulation",
				"description": "Request cooperative cancellation of the in-flight simulation.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "simulation_history",
				"description": "List the retained simulation runs, oldest first.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "refresh_factors",
				"description": "Fetch a fresh variation-factor set from the news analysis endpoint (rate limited).",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "list_factors",
				"description": "List the current variation factors and their enabled state.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "set_factor_enabled",
				"description": "Enable or disable one variation factor by id.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"factor_id": map[string]interface{}{"type": "string"},
						"enabled":   map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"factor_id", "enabled"},
				},
			},
			map[string]interface{}{
				"name":        "export_lineup",
				"description": "Export the most recent run's lineup as CSV.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
	}
}
