package validator

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type listQuery struct {
	Status string `binding:"omitempty,settlement_status"`
	Sort   string `binding:"omitempty,settlement_sort"`
}

type passwordBody struct {
	Password string `binding:"required,max_bytes=72"`
}

type editBody struct {
	Op   string `binding:"required,sheet_edit_op"`
	Name string `binding:"omitempty,not_blank"`
}

func init() {
	Register()
}

func TestSettlementTags(t *testing.T) {
	tests := []struct {
		name    string
		in      listQuery
		wantErr bool
	}{
		{"empty", listQuery{}, false},
		{"active_latest", listQuery{Status: "active", Sort: "latest"}, false},
		{"archived_title", listQuery{Status: "archived", Sort: "title"}, false},
		{"deleted_status", listQuery{Status: "deleted"}, true},
		{"bad_sort", listQuery{Sort: "random"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSheetEditOpAndNotBlank(t *testing.T) {
	if err := binding.Validator.ValidateStruct(&editBody{Op: "toggle_payment"}); err != nil {
		t.Errorf("expected toggle_payment to be valid: %v", err)
	}
	if err := binding.Validator.ValidateStruct(&editBody{Op: "truncate"}); err == nil {
		t.Error("expected unknown op to be rejected")
	}
	if err := binding.Validator.ValidateStruct(&editBody{Op: "set_title", Name: "   "}); err == nil {
		t.Error("expected blank name to be rejected")
	}
}

func TestMaxBytes(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"ascii_at_limit", strings.Repeat("a", 72), false},
		{"ascii_over_limit", strings.Repeat("a", 73), true},
		{"korean_24_chars", strings.Repeat("비", 24), false},
		{"korean_30_chars", strings.Repeat("비", 30), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&passwordBody{Password: tt.password})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
