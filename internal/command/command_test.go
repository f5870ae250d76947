package command

import "testing"

// TestParse verifies classification of every input shape.
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		known    []string
		wantKind Kind
		wantArg  string
		wantErr  bool
	}{
		{
			name:     "plain message",
			input:    "summarize the report",
			wantKind: KindMessage,
			wantArg:  "summarize the report",
		},
		{
			name:     "provider switch",
			input:    "/provider codex",
			wantKind: KindProvider,
			wantArg:  "codex",
		},
		{
			name:    "provider without argument",
			input:   "/provider",
			wantErr: true,
		},
		{
			name:     "policy switch",
			input:    "/policy full",
			wantKind: KindPolicy,
			wantArg:  "full",
		},
		{
			name:     "model with spaces preserved",
			input:    "/model claude-sonnet-4",
			wantKind: KindModel,
			wantArg:  "claude-sonnet-4",
		},
		{
			name:     "clear",
			input:    "/clear",
			wantKind: KindClear,
		},
		{
			name:     "help",
			input:    "/help",
			wantKind: KindHelp,
		},
		{
			name:     "provider-advertised command passes through",
			input:    "/compact now",
			known:    []string{"compact", "cost"},
			wantKind: KindPassthrough,
			wantArg:  "/compact now",
		},
		{
			name:    "unknown command",
			input:   "/frobnicate",
			wantErr: true,
		},
		{
			name:     "leading whitespace",
			input:    "   /clear  ",
			wantKind: KindClear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.input, tt.known)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Expected kind %d, got %d", tt.wantKind, cmd.Kind)
			}
			if cmd.Arg != tt.wantArg {
				t.Errorf("Expected arg %q, got %q", tt.wantArg, cmd.Arg)
			}
		})
	}
}
