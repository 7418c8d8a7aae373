// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"settleup/internal/models"
	"settleup/internal/pagination"
	"settleup/internal/sheet"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("settlement_status", validateSettlementStatus)
		_ = v.RegisterValidation("settlement_sort", validateSettlementSort)
		_ = v.RegisterValidation("sheet_edit_op", validateSheetEditOp)
		_ = v.RegisterValidation("not_blank", validateNotBlank)
		_ = v.RegisterValidation("max_bytes", validateMaxBytes)
	}
}

func validateSettlementStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.SettlementStatusActive, models.SettlementStatusArchived:
		return true
	}
	return false
}

func validateSettlementSort(fl validator.FieldLevel) bool {
	return pagination.IsValidSort(fl.Field().String())
}

func validateSheetEditOp(fl validator.FieldLevel) bool {
	return sheet.IsValidOp(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateMaxBytes limits the UTF-8 encoded length of a string, as opposed
// to max which counts characters. Passwords are capped this way because
// bcrypt rejects input longer than 72 bytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
