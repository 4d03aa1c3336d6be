package db

import (
	"strings"

	"golang.org/x/text/cases"
)

var emailFolder = cases.Fold()

// NormalizeEmail case-folds an email address into its uniqueness-key form.
// Every backend must index and match emails through this function so the
// same address cannot be registered twice under different casings.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}
