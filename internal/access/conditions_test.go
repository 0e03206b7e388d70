package access

import (
	"errors"
	"testing"
)

func TestConditionMatch(t *testing.T) {
	ctx := Context{
		"network_id": "N1",
		"fuel_type":  "diesel",
		"station":    "ast-almaty-12",
	}

	cases := []struct {
		name string
		cond PermissionCondition
		want bool
	}{
		{"eq match", PermissionCondition{Field: "network_id", Op: OpEq, Value: "N1"}, true},
		{"eq mismatch", PermissionCondition{Field: "network_id", Op: OpEq, Value: "N2"}, false},
		{"neq match", PermissionCondition{Field: "network_id", Op: OpNeq, Value: "N2"}, true},
		{"neq mismatch", PermissionCondition{Field: "network_id", Op: OpNeq, Value: "N1"}, false},
		{"in match", PermissionCondition{Field: "fuel_type", Op: OpIn, Values: []string{"ai95", "diesel"}}, true},
		{"in mismatch", PermissionCondition{Field: "fuel_type", Op: OpIn, Values: []string{"ai92"}}, false},
		{"not_in match", PermissionCondition{Field: "fuel_type", Op: OpNotIn, Values: []string{"ai92"}}, true},
		{"not_in mismatch", PermissionCondition{Field: "fuel_type", Op: OpNotIn, Values: []string{"diesel"}}, false},
		{"contains match", PermissionCondition{Field: "station", Op: OpContains, Value: "almaty"}, true},
		{"contains mismatch", PermissionCondition{Field: "station", Op: OpContains, Value: "astana"}, false},
		{"starts_with match", PermissionCondition{Field: "station", Op: OpStartsWith, Value: "ast-"}, true},
		{"starts_with mismatch", PermissionCondition{Field: "station", Op: OpStartsWith, Value: "krg-"}, false},
		{"absent field", PermissionCondition{Field: "region", Op: OpEq, Value: "south"}, false},
		{"unknown op denies", PermissionCondition{Field: "network_id", Op: Operator("~"), Value: "N1"}, false},
	}
	for _, tc := range cases {
		if got := tc.cond.Match(ctx); got != tc.want {
			t.Fatalf("%s: Match = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidateConditions(t *testing.T) {
	bad := []PermissionCondition{
		{Op: OpEq, Value: "x"},
		{Field: "f", Op: Operator("like"), Value: "x"},
		{Field: "f", Op: OpEq},
		{Field: "f", Op: OpIn},
	}
	for i, c := range bad {
		if err := ValidateConditions([]PermissionCondition{c}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	ok := []PermissionCondition{
		{Field: "network_id", Op: OpEq, Value: "N1"},
		{Field: "fuel_type", Op: OpIn, Values: []string{"diesel"}},
	}
	if err := ValidateConditions(ok); err != nil {
		t.Fatalf("valid conditions rejected: %v", err)
	}
}

func TestValidateActions(t *testing.T) {
	if err := ValidateActions(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty action set must be rejected, got %v", err)
	}
	if err := ValidateActions([]Action{Action("execute")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown action must be rejected, got %v", err)
	}
	if err := ValidateActions([]Action{ActionRead, ActionManage}); err != nil {
		t.Fatalf("valid actions rejected: %v", err)
	}
}
