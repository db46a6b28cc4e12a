package validation

import (
	"strings"
	"testing"
)

func TestValidateLogName(t *testing.T) {
	tests := []struct {
		name    string
		logName string
		wantErr bool
		errMsg  string
	}{
		{name: "daemon", logName: "daemon", wantErr: false},
		{name: "dotted name", logName: "hooks.2026-10-16", wantErr: false},
		{name: "empty", logName: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "forward slash", logName: "logs/daemon", wantErr: true, errMsg: "contains path separators"},
		{name: "backslash", logName: "logs\\daemon", wantErr: true, errMsg: "contains path separators"},
		{name: "path traversal", logName: "../../etc/passwd", wantErr: true, errMsg: "contains path separators"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogName(tt.logName)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLogName(%q) error = %v, wantErr %v", tt.logName, err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateLogName(%q) error = %q, want substring %q", tt.logName, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateAgentSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "uuid", id: "f736da47-b2ca-4f86-bb32-a1bbe582e464", wantErr: false},
		{name: "test identifier", id: "test_session_1", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "path traversal", id: "../secret", wantErr: true},
		{name: "spaces", id: "session one", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgentSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgentSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDestinationID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "telegram", id: "telegram", wantErr: false},
		{name: "hyphenated", id: "team-chat", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "uppercase", id: "Telegram", wantErr: true},
		{name: "trailing hyphen", id: "chat-", wantErr: true},
		{name: "reserved suffix", id: "telegram-verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDestinationID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDestinationID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTmuxTarget(t *testing.T) {
	tests := []struct {
		target  string
		wantErr bool
	}{
		{target: "", wantErr: false},
		{target: "main", wantErr: false},
		{target: "main:0.1", wantErr: false},
		{target: "%12", wantErr: false},
		{target: "main; rm -rf /", wantErr: true},
		{target: "$(whoami)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			err := ValidateTmuxTarget(tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTmuxTarget(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
		})
	}
}
