package migration

import (
	"encoding/json"
	"testing"
)

func TestParseClaimRow(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected claimRow
	}{
		{
			name: "positional array",
			raw:  `["alice", "10.0000 HYPHA", "0xAbC0000000000000000000000000000000000001", 1, "2024-01-15T10:00:00"]`,
			expected: claimRow{
				Account:    "alice",
				Amount:     "10.0000 HYPHA",
				EthAddress: "0xAbC0000000000000000000000000000000000001",
				Migrated:   true,
			},
		},
		{
			name: "object keyed by index",
			raw:  `{"0": "bob", "1": "3.5000 HYPHA", "2": "0xdef0000000000000000000000000000000000002", "3": 0}`,
			expected: claimRow{
				Account:    "bob",
				Amount:     "3.5000 HYPHA",
				EthAddress: "0xdef0000000000000000000000000000000000002",
				Migrated:   false,
			},
		},
		{
			name: "named fields",
			raw:  `{"account": "carol", "amount": "1.0000 HYPHA", "eth_address": "0x0000000000000000000000000000000000000003", "migrated": true}`,
			expected: claimRow{
				Account:    "carol",
				Amount:     "1.0000 HYPHA",
				EthAddress: "0x0000000000000000000000000000000000000003",
				Migrated:   true,
			},
		},
		{
			name: "structured asset amount",
			raw:  `{"account": "dave", "amount": {"quantity": "2.0000 HYPHA", "contract": "token.hypha"}, "eth_address": "0x0000000000000000000000000000000000000004", "migrated": 1}`,
			expected: claimRow{
				Account:    "dave",
				Amount:     "2.0000 HYPHA",
				EthAddress: "0x0000000000000000000000000000000000000004",
				Migrated:   true,
			},
		},
		{
			name: "missing amount defaults to zero",
			raw:  `{"account": "erin", "eth_address": "0x0000000000000000000000000000000000000005", "migrated": true}`,
			expected: claimRow{
				Account:    "erin",
				Amount:     "0.0000 HYPHA",
				EthAddress: "0x0000000000000000000000000000000000000005",
				Migrated:   true,
			},
		},
		{
			name: "null amount defaults to zero",
			raw:  `{"account": "frank", "amount": null, "eth_address": "0x0000000000000000000000000000000000000006", "migrated": true}`,
			expected: claimRow{
				Account:    "frank",
				Amount:     "0.0000 HYPHA",
				EthAddress: "0x0000000000000000000000000000000000000006",
				Migrated:   true,
			},
		},
		{
			name: "bare numeric amount gets symbol",
			raw:  `{"account": "grace", "amount": 4.5, "eth_address": "0x0000000000000000000000000000000000000007", "migrated": true}`,
			expected: claimRow{
				Account:    "grace",
				Amount:     "4.5 HYPHA",
				EthAddress: "0x0000000000000000000000000000000000000007",
				Migrated:   true,
			},
		},
		{
			name: "short positional row",
			raw:  `["henry", "1.0000 HYPHA"]`,
			expected: claimRow{
				Account:  "henry",
				Amount:   "1.0000 HYPHA",
				Migrated: false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := parseClaimRow(json.RawMessage(tt.raw), "HYPHA")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if row != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, row)
			}
		})
	}
}

func TestParseClaimRowRejectsScalar(t *testing.T) {
	if _, err := parseClaimRow(json.RawMessage(`"not a row"`), "HYPHA"); err == nil {
		t.Error("expected error for scalar row encoding")
	}
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{``, false},
		{`"yes"`, false},
	}
	for _, tt := range tests {
		if got := parseFlag(json.RawMessage(tt.raw)); got != tt.expected {
			t.Errorf("parseFlag(%q): expected %v, got %v", tt.raw, tt.expected, got)
		}
	}
}
